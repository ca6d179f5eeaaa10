package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffRetryer(t *testing.T) {
	t.Run("default schedule doubles up to the cap", func(t *testing.T) {
		retryer := NewExponentialBackoffRetryer()

		want := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			8 * time.Second,
			8 * time.Second,
		}
		for attempt, expected := range want {
			delay, shouldRetry := retryer.NextDelay(attempt, nil)
			assert.True(t, shouldRetry, "attempt %d should retry", attempt)
			assert.Equal(t, expected, delay, "attempt %d", attempt)
		}
	})

	t.Run("with jitter", func(t *testing.T) {
		retryer := &ExponentialBackoffRetryer{
			InitialDelay: 1 * time.Second,
			MaxDelay:     8 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			JitterFactor: 0.3,
		}

		// First retry (attempt 0)
		delay, shouldRetry := retryer.NextDelay(0, nil)
		assert.True(t, shouldRetry)
		assert.GreaterOrEqual(t, delay, 700*time.Millisecond) // 1s - 30% jitter
		assert.LessOrEqual(t, delay, 1300*time.Millisecond)   // 1s + 30% jitter

		// Second retry (attempt 1)
		delay, shouldRetry = retryer.NextDelay(1, nil)
		assert.True(t, shouldRetry)
		assert.GreaterOrEqual(t, delay, 1400*time.Millisecond) // 2s - 30% jitter
		assert.LessOrEqual(t, delay, 2600*time.Millisecond)    // 2s + 30% jitter
	})

	t.Run("with max retries", func(t *testing.T) {
		retryer := &ExponentialBackoffRetryer{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			MaxRetries:   3,
			Jitter:       false,
		}

		// First three retries should succeed
		for i := 0; i < 3; i++ {
			delay, shouldRetry := retryer.NextDelay(i, nil)
			assert.True(t, shouldRetry, "attempt %d should retry", i)
			assert.Greater(t, delay, time.Duration(0))
		}

		// Fourth retry should fail
		delay, shouldRetry := retryer.NextDelay(3, nil)
		assert.False(t, shouldRetry)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("reset does not affect stateless retryer", func(t *testing.T) {
		retryer := NewExponentialBackoffRetryer()

		delay1, _ := retryer.NextDelay(2, nil)
		retryer.Reset()
		delay2, _ := retryer.NextDelay(2, nil)
		assert.Equal(t, delay1, delay2)
	})
}

func TestFixedDelayRetryer(t *testing.T) {
	t.Run("fixed delay", func(t *testing.T) {
		retryer := NewFixedDelayRetryer(500*time.Millisecond, 0)

		for i := 0; i < 5; i++ {
			delay, shouldRetry := retryer.NextDelay(i, nil)
			assert.True(t, shouldRetry)
			assert.Equal(t, 500*time.Millisecond, delay)
		}
	})

	t.Run("with max retries", func(t *testing.T) {
		retryer := NewFixedDelayRetryer(100*time.Millisecond, 2)

		_, shouldRetry := retryer.NextDelay(0, nil)
		assert.True(t, shouldRetry)
		_, shouldRetry = retryer.NextDelay(1, nil)
		assert.True(t, shouldRetry)
		_, shouldRetry = retryer.NextDelay(2, nil)
		assert.False(t, shouldRetry)
	})
}
