package channel

import "time"

// Backoff configures the wait between subscribe attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	// A subscription that stayed up at least this long resets the attempt
	// counter.
	StableAfter time.Duration
}

// DefaultBackoff returns the production backoff settings.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     50 * time.Millisecond,
		Max:         5 * time.Second,
		StableAfter: 10 * time.Second,
	}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := b.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}
