package middleware

import (
	"sync"
	"time"
)

type visitor struct {
	count     int
	windowEnd time.Time
}

// RateLimiter is a fixed-window counter per key. A key's window starts on
// its first request and is replaced wholesale once it has elapsed.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	// Cleanup goroutine
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, v := range rl.visitors {
		if now.After(v.windowEnd) {
			delete(rl.visitors, key)
		}
	}
}

// ShouldThrottle records a request for key and reports whether it is over
// the limit. Throttled requests are not counted.
func (rl *RateLimiter) ShouldThrottle(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.After(v.windowEnd) {
		rl.visitors[key] = &visitor{count: 1, windowEnd: now.Add(rl.window)}
		return false
	}

	if v.count >= rl.limit {
		return true
	}
	v.count++
	return false
}

// RetryAfter is the time left in key's current window.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		return 0
	}
	if d := v.windowEnd.Sub(rl.now()); d > 0 {
		return d
	}
	return 0
}
