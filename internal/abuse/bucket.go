package abuse

import (
	"math"
	"time"
)

// fallbackRetrySeconds is the retry hint returned when a bucket is
// configured with a non-positive refill rate and no estimate can be
// computed.
const fallbackRetrySeconds = 60

// bucket is a single token bucket with lazy, fractional refill.
// Tokens stay clamped to [0, capacity]; refill happens on access,
// never via a background timer.
type bucket struct {
	capacity     float64
	refillPerSec float64
	tokens       float64
	updatedAt    time.Time
}

func newBucket(capacity, refillPerSec float64, now time.Time) *bucket {
	return &bucket{
		capacity:     capacity,
		refillPerSec: refillPerSec,
		tokens:       capacity,
		updatedAt:    now,
	}
}

// take refills the bucket for the elapsed time and tries to deduct cost
// tokens. It reports whether the call is allowed and, on denial, how many
// whole seconds until enough tokens accumulate. Nothing is deducted on
// denial.
func (b *bucket) take(now time.Time, cost float64) (bool, int) {
	elapsed := now.Sub(b.updatedAt).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillPerSec)
		b.updatedAt = now
	}

	if b.tokens >= cost {
		b.tokens -= cost
		return true, 0
	}

	if b.refillPerSec <= 0 {
		return false, fallbackRetrySeconds
	}
	need := cost - b.tokens
	retry := int(math.Ceil(need / b.refillPerSec))
	if retry < 0 {
		retry = 0
	}
	return false, retry
}
