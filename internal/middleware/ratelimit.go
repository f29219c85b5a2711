package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type visitor struct {
	count    int
	lastSeen time.Time
}

// RateLimiter allows limit requests per key within a sliding window that
// restarts after the key has been idle for a full window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	keyFunc  func(*http.Request) string
}

// NewRateLimiter limits by client address.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, func(r *http.Request) string { return r.RemoteAddr })
}

// NewUserRateLimiter limits by authenticated user, falling back to the
// client address. It must run after JWTAuth.Middleware.
func NewUserRateLimiter(limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(limit, window, func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != uuid.Nil {
			return "user:" + id.String()
		}
		return r.RemoteAddr
	})
}

func newRateLimiter(limit int, window time.Duration, keyFunc func(*http.Request) string) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		keyFunc:  keyFunc,
	}

	// Cleanup goroutine
	go func() {
		for {
			time.Sleep(window)
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > window {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists || time.Since(v.lastSeen) > rl.window {
		rl.visitors[key] = &visitor{count: 1, lastSeen: time.Now()}
		return true
	}

	v.count++
	v.lastSeen = time.Now()
	return v.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.keyFunc(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
