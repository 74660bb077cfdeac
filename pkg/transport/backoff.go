// pkg/transport/backoff.go
package transport

import (
	"errors"
	"time"
)

// BackoffConfig governs the retry schedule of a delivery. The delay
// before retry n grows as baseDelay * 2^(n-1), capped at MaxDelay.
type BackoffConfig struct {
	MaxAttempts int           // Total attempt budget, >= 1
	BaseDelay   time.Duration // Delay before the first retry, > 0
	MaxDelay    time.Duration // Cap on the computed delay, >= BaseDelay
	Jitter      bool          // Randomize each delay within [0.5, 1.5]x
}

// Validate ensures the configuration is usable. A malformed config is
// a construction-time fatal error — it aborts before any record is
// processed.
func (c BackoffConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("maxAttempts must be at least 1")
	}
	if c.BaseDelay <= 0 {
		return errors.New("baseDelay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return errors.New("maxDelay cannot be less than baseDelay")
	}
	return nil
}

// delayFor computes the capped exponential delay after the attempt with
// the given zero-based index has failed.
func (c BackoffConfig) delayFor(attemptIndex int) time.Duration {
	// Guard the shift: beyond 62 doublings any real BaseDelay overflows
	// a Duration, so the cap applies regardless.
	if attemptIndex > 62 {
		return c.MaxDelay
	}

	delay := c.BaseDelay << uint(attemptIndex)
	if delay <= 0 || delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
