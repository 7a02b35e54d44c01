package eventstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrInvalidResponse indicates the server accepted the request but
	// returned no readable body.
	ErrInvalidResponse = errors.New("eventstream: response has no readable body")

	// ErrMaxRetries indicates the reconnect budget is exhausted.
	ErrMaxRetries = errors.New("eventstream: max retries exceeded")

	// ErrClosed is returned by Connect on a client that has been closed.
	ErrClosed = errors.New("eventstream: client closed")
)

// errStaleConnection marks a heartbeat-forced teardown. It never escapes
// the client: the run loop converts it into an immediate reconnect.
var errStaleConnection = errors.New("eventstream: connection stale")

// StreamError wraps errors with context about the failed operation.
type StreamError struct {
	// Op is the operation that failed: "connect" or "read".
	Op string

	// URL is the stream URL.
	URL string

	// StatusCode is the HTTP status code, if available.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("eventstream: %s %s failed with status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("eventstream: %s %s failed: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

func newStreamError(op, url string, statusCode int, err error) *StreamError {
	return &StreamError{
		Op:         op,
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}
