// Package eventstream provides a resilient client for incremental,
// text-framed event streams delivered over a long-lived HTTP response
// body.
//
// The client parses the standard event-stream framing (id/event/data/
// retry fields, blank-line record separation), reconnects automatically
// with capped exponential backoff, detects stalled connections via a
// heartbeat monitor, keeps a bounded history of recent events, and
// delivers decoded events to subscribers through a filter and transform
// pipeline with optional batching.
//
// # Basic Usage
//
// Create a client, subscribe, and connect:
//
//	client := eventstream.NewClient("https://example.com/events")
//	defer client.Close()
//
//	client.On("message", func(ev eventstream.Event) {
//	    fmt.Println(ev.Data)
//	})
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//
// Connect blocks while the stream is live. With auto-reconnect enabled
// (the default) it absorbs failures into delayed retries; the attempt
// counter resets as soon as data arrives. When the retry budget runs out,
// Connect returns ErrMaxRetries.
//
// # Resumption
//
// The client tracks the last seen `id:` field and sends it back as the
// Last-Event-ID header on each reconnect, so servers that support
// resumption can continue from that point. Seed a saved position with
// WithLastEventID.
//
// # Batching
//
// With WithBatching enabled, events additionally accumulate in a batch
// buffer delivered to OnBatch handlers whenever a full batch is available
// or FlushBatch is called:
//
//	client := eventstream.NewClient(url,
//	    eventstream.WithBatching(25, time.Second),
//	)
//	client.OnBatch(func(batch []eventstream.Event) {
//	    store(batch)
//	})
//
// # Error Handling
//
// The package provides sentinel errors for terminal conditions:
//
//	if errors.Is(err, eventstream.ErrMaxRetries) {
//	    // retry budget exhausted
//	}
//
// For detailed information, use errors.As with StreamError:
//
//	var se *eventstream.StreamError
//	if errors.As(err, &se) {
//	    fmt.Println("Status:", se.StatusCode)
//	}
package eventstream
