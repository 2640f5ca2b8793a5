package intake

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit events in any trailing window. It keeps
// the timestamps of the last limit admissions in a ring, so a rejected event
// never consumes budget.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   []time.Time
	head   int
	count  int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{limit: limit, window: window, hits: make([]time.Time, limit)}
}

// Allow records an event at now and reports whether it is within budget.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < r.limit {
		r.hits[(r.head+r.count)%r.limit] = now
		r.count++
		return true
	}
	oldest := r.hits[r.head]
	if now.Sub(oldest) < r.window {
		return false
	}
	r.hits[r.head] = now
	r.head = (r.head + 1) % r.limit
	return true
}

func (r *RateLimiter) Limit() int {
	return r.limit
}

func (r *RateLimiter) Window() time.Duration {
	return r.window
}
