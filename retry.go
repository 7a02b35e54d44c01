package eventstream

import "time"

// RetryPolicy configures reconnection backoff.
type RetryPolicy struct {
	// InitialDelay is the delay before the first reconnect attempt.
	// A `retry:` field received on the stream overrides it for the
	// remainder of the session.
	// Default is 1s.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth.
	// Default is 30s.
	MaxDelay time.Duration

	// MaxRetries is the number of consecutive failed connection attempts
	// tolerated before Connect returns ErrMaxRetries.
	// Default is 10.
	MaxRetries int
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		MaxRetries:   10,
	}
}

// Delay returns the backoff delay for the given attempt count:
// min(InitialDelay × 2^attempt, MaxDelay). No jitter is applied.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return backoffDelay(p.InitialDelay, p.MaxDelay, attempt)
}

// backoffDelay doubles base attempt times, capping at max. The loop caps
// early so large attempt counts cannot overflow the duration.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
