package eventstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/event-streams/client-go/internal/sse"
)

// Client is a resilient consumer of a single event stream.
//
// A Client owns its connection lifecycle: Connect establishes the stream
// and runs a blocking read loop, reconnecting with capped exponential
// backoff on failure or end of stream; Close tears everything down.
// Decoded events flow through the filter/transform pipeline to handlers
// registered with On, and are recorded in a bounded history buffer.
//
// The accessor methods are safe for concurrent use. Handlers and the
// state observer run on the client's internal goroutines.
type Client struct {
	url        string
	cfg        config
	httpClient *http.Client
	log        *zap.Logger

	disp    *dispatcher
	history *history
	batch   *batcher

	mu            sync.Mutex
	state         ConnectionState
	attempts      int
	lastEventID   string
	lastMessage   time.Time
	retryHint     time.Duration
	sessionCancel context.CancelFunc
	body          io.ReadCloser
	stale         bool
	closed        bool
}

// NewClient creates a client for the stream at url.
// No network request is made until Connect is called.
func NewClient(url string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}

	return &Client{
		url:         url,
		cfg:         cfg,
		httpClient:  httpClient,
		log:         cfg.logger,
		disp:        newDispatcher(cfg),
		history:     newHistory(cfg.bufferSize),
		batch:       newBatcher(cfg.batchSize),
		state:       StateDisconnected,
		lastEventID: cfg.lastEventID,
	}
}

// defaultHTTPClient builds a client with pooled connections and no global
// timeout; the stream stays open indefinitely and cancellation happens
// through the request context.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 0,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// Connect establishes the stream and blocks running the read loop.
//
// It returns nil when the stream ends cleanly (auto-reconnect disabled)
// or when Close is called. With auto-reconnect disabled, connection and
// read failures are returned directly as a *StreamError. With it enabled,
// failures are absorbed into scheduled retries until the budget is
// exhausted, at which point Connect returns ErrMaxRetries.
//
// Calling Connect while a previous call is still running cancels the
// prior attempt first. A closed client cannot reconnect: once Close has
// been called, Connect returns ErrClosed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	sessCtx, cancel := context.WithCancel(ctx)
	c.sessionCancel = cancel
	c.mu.Unlock()
	defer cancel()

	if c.cfg.heartbeatEnabled {
		go c.runHeartbeat(sessCtx)
	}
	if c.cfg.batchEnabled {
		go c.runBatchTicker(sessCtx)
	}

	return c.run(sessCtx)
}

// Close cancels any in-flight read, stops the heartbeat and batch timers,
// and transitions to StateDisconnected. Close is terminal: subsequent
// Connect calls return ErrClosed. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.sessionCancel
	c.sessionCancel = nil
	body := c.body
	c.body = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}
	c.setState(StateDisconnected)
	return nil
}

// On registers a handler for the named event. Records without an explicit
// event name are delivered under DefaultEventName.
func (c *Client) On(name string, h Handler) Subscription {
	return c.disp.on(name, h)
}

// OnBatch registers a handler for aggregated batches. Batches are
// delivered when the batch buffer reaches the configured size, on the
// interval tick, or on FlushBatch.
func (c *Client) OnBatch(h BatchHandler) Subscription {
	return c.disp.onBatch(h)
}

// Off removes a previously registered handler.
func (c *Client) Off(sub Subscription) {
	c.disp.off(sub)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastEventID returns the most recently seen record id, used for
// resumption on the next connection attempt.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// Buffer returns a copy of the bounded history, oldest first.
func (c *Client) Buffer() []BufferedEntry {
	return c.history.snapshot()
}

// ClearBuffer empties the bounded history.
func (c *Client) ClearBuffer() {
	c.history.clear()
}

// BatchBuffer returns a copy of the events awaiting batch delivery.
func (c *Client) BatchBuffer() []Event {
	return c.batch.snapshot()
}

// FlushBatch drains the batch buffer and delivers whatever it holds, even
// below the configured batch size, as a single batch.
func (c *Client) FlushBatch() {
	c.disp.dispatchBatch(c.batch.flush())
}

// run supervises connection attempts until a terminal condition.
func (c *Client) run(ctx context.Context) error {
	for {
		err := c.connectOnce(ctx)

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			if c.isClosed() {
				return nil
			}
			return ctx.Err()
		}

		var delay time.Duration
		switch {
		case err == nil:
			// Clean end of stream.
			if !c.cfg.autoReconnect {
				c.setState(StateDisconnected)
				return nil
			}
			c.mu.Lock()
			delay = backoffDelay(c.baseDelayLocked(), c.cfg.retry.MaxDelay, c.attempts)
			c.mu.Unlock()
			c.log.Debug("stream ended, reconnecting", zap.Duration("delay", delay))

		case errors.Is(err, errStaleConnection):
			// Heartbeat-forced teardown: reconnect immediately without
			// consuming retry budget.
			c.log.Debug("stale connection torn down, reconnecting")

		default:
			c.setState(StateError)
			if !c.cfg.autoReconnect {
				return err
			}
			c.mu.Lock()
			if c.attempts >= c.cfg.retry.MaxRetries {
				attempts := c.attempts
				c.mu.Unlock()
				c.log.Debug("retry budget exhausted", zap.Int("attempts", attempts))
				return newStreamError("connect", c.url, 0, ErrMaxRetries)
			}
			delay = backoffDelay(c.baseDelayLocked(), c.cfg.retry.MaxDelay, c.attempts)
			c.attempts++
			c.mu.Unlock()
			c.log.Debug("connection failed, scheduling retry",
				zap.Duration("delay", delay),
				zap.Error(err))
		}

		c.setState(StateReconnecting)
		if delay > 0 {
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				if c.isClosed() {
					return nil
				}
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// connectOnce performs one connection attempt and, on success, runs the
// read loop until the stream ends or fails. A nil return means clean end
// of stream.
func (c *Client) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return newStreamError("connect", c.url, 0, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range c.cfg.headers {
		req.Header.Set(k, v)
	}

	c.mu.Lock()
	lastID := c.lastEventID
	c.mu.Unlock()
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newStreamError("connect", c.url, 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return newStreamError("connect", c.url, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", resp.Status))
	}
	if resp.Body == nil {
		return newStreamError("connect", c.url, resp.StatusCode, ErrInvalidResponse)
	}

	c.mu.Lock()
	c.body = resp.Body
	c.stale = false
	c.lastMessage = time.Now()
	c.mu.Unlock()
	c.setState(StateConnected)
	c.log.Debug("connected", zap.String("url", c.url))

	defer func() {
		c.mu.Lock()
		c.body = nil
		c.mu.Unlock()
		resp.Body.Close()
	}()

	parser := sse.NewParser()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			c.handleChunk(parser, string(buf[:n]))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			c.mu.Lock()
			stale := c.stale
			c.stale = false
			c.mu.Unlock()
			if stale {
				return errStaleConnection
			}
			return newStreamError("read", c.url, 0, readErr)
		}
	}
}

// handleChunk feeds one network read into the parser and routes every
// completed record: state update, history, batch aggregation, dispatch,
// in byte-arrival order.
func (c *Client) handleChunk(p *sse.Parser, chunk string) {
	events := p.Feed(chunk)

	c.mu.Lock()
	if id, ok := p.LastEventID(); ok {
		c.lastEventID = id
	}
	if hint, ok := p.RetryHint(); ok && hint != c.retryHint {
		c.retryHint = hint
		c.log.Debug("retry hint updated", zap.Duration("hint", hint))
	}
	c.mu.Unlock()

	for _, rec := range events {
		ev := Event{ID: rec.ID, Name: rec.Name, Data: rec.Data, Retry: rec.Retry}
		if ev.Name == "" {
			ev.Name = DefaultEventName
		}

		c.mu.Lock()
		now := time.Now()
		c.lastMessage = now
		retryCount := c.attempts
		c.attempts = 0
		c.mu.Unlock()

		c.history.append(BufferedEntry{
			Event: ev,
			Meta: EntryMeta{
				Timestamp:  now,
				EventID:    rec.ID,
				RetryCount: retryCount,
			},
		})

		if c.cfg.batchEnabled {
			if batch, ready := c.batch.add(ev); ready {
				c.disp.dispatchBatch(batch)
			}
		}

		c.disp.dispatch(ev)
	}
}

// runHeartbeat periodically checks the gap since the last received record
// and force-closes a stalled connection so the read loop reconnects.
func (c *Client) runHeartbeat(ctx context.Context) {
	t := time.NewTicker(c.cfg.heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		c.mu.Lock()
		gap := time.Since(c.lastMessage)
		body := c.body
		stalled := c.state == StateConnected && body != nil && gap > c.cfg.heartbeatTimeout
		if stalled {
			c.stale = true
		}
		c.mu.Unlock()

		if stalled {
			c.log.Debug("heartbeat timeout, forcing reconnect", zap.Duration("gap", gap))
			body.Close()
		}
	}
}

// runBatchTicker delivers accumulated full batches on the configured
// interval.
func (c *Client) runBatchTicker(ctx context.Context) {
	t := time.NewTicker(c.cfg.batchInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if batch, ok := c.batch.takeIfFull(); ok {
				c.disp.dispatchBatch(batch)
			}
		}
	}
}

// baseDelayLocked returns the effective backoff base: the in-band retry
// hint when one has been received, the configured initial delay otherwise.
func (c *Client) baseDelayLocked() time.Duration {
	if c.retryHint > 0 {
		return c.retryHint
	}
	return c.cfg.retry.InitialDelay
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.log.Debug("state changed", zap.Stringer("state", s))
	if c.cfg.stateHandler != nil {
		c.cfg.stateHandler(s)
	}
}
