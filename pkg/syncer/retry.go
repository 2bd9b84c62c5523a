package syncer

import (
	"math/rand"
	"time"
)

// RetryPolicy decides how long a failed action waits before it is eligible
// for another delivery attempt. retryCount is the number of failures so far
// (1 on the first retry).
type RetryPolicy interface {
	NextDelay(retryCount int) time.Duration
}

// NoDelay retries immediately on the next drain pass.
type NoDelay struct{}

func (NoDelay) NextDelay(int) time.Duration { return 0 }

// ExponentialBackoff waits 2^retryCount * Base, capped at Max, plus a random
// jitter in [0, Jitter) so a queue full of failures does not hammer a
// struggling backend in lockstep.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// DefaultBackoff returns the backoff used when no policy is configured.
func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    30 * time.Second,
		Jitter: 50 * time.Millisecond,
	}
}

func (b ExponentialBackoff) NextDelay(retryCount int) time.Duration {
	d := time.Duration(1<<retryCount) * b.Base
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}
