package eventstream

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Default configuration values.
const (
	defaultBufferSize        = 1000
	defaultBatchSize         = 10
	defaultBatchInterval     = time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 60 * time.Second
)

type config struct {
	httpClient *http.Client
	headers    map[string]string

	retry         RetryPolicy
	autoReconnect bool

	heartbeatEnabled  bool
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	include      []string
	exclude      []string
	transformers []Transformer

	batchEnabled  bool
	batchSize     int
	batchInterval time.Duration

	bufferSize  int
	lastEventID string

	logger       *zap.Logger
	stateHandler func(ConnectionState)
}

func defaultConfig() config {
	return config{
		retry:             DefaultRetryPolicy(),
		autoReconnect:     true,
		heartbeatInterval: defaultHeartbeatInterval,
		heartbeatTimeout:  defaultHeartbeatTimeout,
		batchSize:         defaultBatchSize,
		batchInterval:     defaultBatchInterval,
		bufferSize:        defaultBufferSize,
		logger:            zap.NewNop(),
	}
}

// Option configures a Client. Options are resolved once at construction;
// the resulting snapshot is immutable.
type Option func(*config)

// WithHTTPClient sets a custom HTTP client.
// If not set, a default client with sensible timeouts is used.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = c
	}
}

// WithHeaders sets custom headers sent on every connection attempt.
func WithHeaders(headers map[string]string) Option {
	return func(cfg *config) {
		cfg.headers = headers
	}
}

// WithRetryPolicy sets the reconnection backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *config) {
		cfg.retry = p
	}
}

// WithAutoReconnect enables or disables automatic reconnection.
// Enabled by default. When disabled, Connect returns the first failure
// directly and a clean end of stream completes without error.
func WithAutoReconnect(enabled bool) Option {
	return func(cfg *config) {
		cfg.autoReconnect = enabled
	}
}

// WithHeartbeat enables stall detection: every interval the client checks
// the time since the last received record, and if the gap exceeds timeout
// it force-closes the connection and reconnects immediately.
// Zero values keep the defaults (30s interval, 60s timeout).
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.heartbeatEnabled = true
		if interval > 0 {
			cfg.heartbeatInterval = interval
		}
		if timeout > 0 {
			cfg.heartbeatTimeout = timeout
		}
	}
}

// WithIncludeFilter restricts delivery to the named events. When set, the
// exclude list is ignored.
func WithIncludeFilter(names ...string) Option {
	return func(cfg *config) {
		cfg.include = names
	}
}

// WithExcludeFilter drops the named events from delivery. Only consulted
// when no include filter is set.
func WithExcludeFilter(names ...string) Option {
	return func(cfg *config) {
		cfg.exclude = names
	}
}

// WithTransformers sets the ordered transformation pipeline applied to
// each event before delivery. A transformer that returns an error is
// skipped and the pre-transformer value continues down the pipeline.
func WithTransformers(ts ...Transformer) Option {
	return func(cfg *config) {
		cfg.transformers = ts
	}
}

// WithBatching enables batch aggregation. Events accumulate in the batch
// buffer; a full batch (size events) is delivered to OnBatch handlers,
// either as soon as the size is reached or on the interval tick.
// Zero values keep the defaults (size 10, interval 1s).
func WithBatching(size int, interval time.Duration) Option {
	return func(cfg *config) {
		cfg.batchEnabled = true
		if size > 0 {
			cfg.batchSize = size
		}
		if interval > 0 {
			cfg.batchInterval = interval
		}
	}
}

// WithBufferSize sets the capacity of the bounded history buffer.
// Default is 1000. Oldest entries are evicted first.
func WithBufferSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.bufferSize = n
		}
	}
}

// WithLastEventID seeds the resumption id sent as the Last-Event-ID
// header on the first connection attempt.
func WithLastEventID(id string) Option {
	return func(cfg *config) {
		cfg.lastEventID = id
	}
}

// WithLogger sets the debug logger. Defaults to a no-op logger. The debug
// channel never alters control flow or error classification.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithStateHandler registers an observer invoked on every connection
// state transition. The handler runs on the client's internal goroutines
// and should return promptly.
func WithStateHandler(fn func(ConnectionState)) Option {
	return func(cfg *config) {
		cfg.stateHandler = fn
	}
}
