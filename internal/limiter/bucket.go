package limiter

import (
	"sync"
	"time"
)

// Bucket is a token-bucket limiter. It starts full with burst tokens and
// refills one token per interval, capped at burst. Each connection gets its
// own bucket, so one flooding client never starves the others.
type Bucket struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewBucket constructs a bucket refilling one token per interval.
// A non-positive burst or interval disables limiting.
func NewBucket(burst int, interval time.Duration) *Bucket {
	b := &Bucket{
		tokens:   float64(burst),
		burst:    float64(burst),
		interval: interval,
		now:      time.Now,
	}
	b.last = b.now()
	return b
}

// Allow consumes a token if one is available.
func (b *Bucket) Allow() bool {
	if b.burst <= 0 || b.interval <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += float64(elapsed) / float64(b.interval)
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
