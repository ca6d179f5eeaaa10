package stream

import (
	"math"
	"math/rand"
	"time"

	"github.com/taskboard/taskboard.go/pkg/constants"
)

// Retryer decides how long to wait before each reconnect attempt.
type Retryer interface {
	// NextDelay returns the delay before the next reconnect attempt.
	// attempt is 0-based (0 for the first retry, 1 for the second, etc.)
	// and resets to 0 whenever a connection opens successfully.
	// The second return value reports whether to keep retrying.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset resets any retryer state. Called on successful connection.
	Reset()
}

// ExponentialBackoffRetryer implements exponential backoff with an upper
// bound and optional jitter.
type ExponentialBackoffRetryer struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay regardless of the attempt number.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64

	// MaxRetries is the maximum number of retry attempts (0 for infinite).
	MaxRetries int

	// Jitter adds randomness to the delay to avoid thundering herd.
	Jitter bool

	// JitterFactor is the maximum jitter as a fraction of the delay (0.0 to 1.0).
	JitterFactor float64
}

// NewExponentialBackoffRetryer returns a retryer with the default schedule:
// 1s, 2s, 4s, then 8s for every attempt after that, retrying forever.
//
// Jitter is disabled by default so reconnect timing stays predictable;
// enable it when many clients share one server.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: constants.DefaultInitialRetryDelay,
		MaxDelay:     constants.DefaultMaxRetryDelay,
		Multiplier:   2.0,
		MaxRetries:   0,
		Jitter:       false,
	}
}

// NextDelay implements Retryer
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))

	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		jitter := delay * r.JitterFactor * (2*rand.Float64() - 1)
		delay += jitter
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset implements Retryer
func (r *ExponentialBackoffRetryer) Reset() {
	// No state to reset for exponential backoff
}

// FixedDelayRetryer waits the same delay between every attempt.
type FixedDelayRetryer struct {
	// Delay is the fixed delay between retries.
	Delay time.Duration

	// MaxRetries is the maximum number of retry attempts (0 for infinite).
	MaxRetries int
}

// NewFixedDelayRetryer creates a new fixed delay retryer
func NewFixedDelayRetryer(delay time.Duration, maxRetries int) *FixedDelayRetryer {
	return &FixedDelayRetryer{
		Delay:      delay,
		MaxRetries: maxRetries,
	}
}

// NextDelay implements Retryer
func (r *FixedDelayRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}
	return r.Delay, true
}

// Reset implements Retryer
func (r *FixedDelayRetryer) Reset() {
	// No state to reset for fixed delay
}
