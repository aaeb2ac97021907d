package webhooks

import (
	"sync"
	"time"
)

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// DestinationLimiter enforces each configuration's requests-per-minute
// ceiling across worker goroutines. Buckets start full so a destination's
// first deliveries never wait.
type DestinationLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewDestinationLimiter() *DestinationLimiter {
	return &DestinationLimiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token from the configuration's bucket, reporting
// whether the delivery may proceed now.
func (l *DestinationLimiter) Allow(configID string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[configID]
	if !ok {
		b = &bucket{
			tokens:     float64(perMinute),
			capacity:   float64(perMinute),
			refillRate: float64(perMinute) / 60.0,
			lastRefill: time.Now(),
		}
		l.buckets[configID] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
