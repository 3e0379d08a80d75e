package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// WindowResult is the outcome of one sliding-window check.
type WindowResult struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// WindowLimiter is a shared, atomic sliding-window counter.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (WindowResult, error)
}

// Gate rejects clients that exceed the sliding window before any handler
// runs. A nil limiter disables it; limiter errors let the request through.
func Gate(limiter WindowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := "ratelimit_" + ClientIP(r)
			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.UnixMilli(), 10))

			if !res.Success {
				h.Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("Too many requests. Please wait a minute before trying again."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
