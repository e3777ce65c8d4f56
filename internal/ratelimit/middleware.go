package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ipgate/internal/models"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// RemoteAddrKey keys requests by their socket peer address.
func RemoteAddrKey(r *http.Request) string {
	return r.RemoteAddr
}

// Middleware returns HTTP middleware that enforces rate limits per key. Rate
// limit headers are set on every response. Rejected requests are passed to
// onLimited, which decides what to write; a nil onLimited answers 429 with
// the throttled message.
func Middleware(limiter Limiter, keyFn KeyFunc, onLimited http.Handler) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = RemoteAddrKey
	}
	if onLimited == nil {
		onLimited = http.HandlerFunc(writeTooManyRequests)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed, info := limiter.Allow(key)

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))

				slog.Debug("Rate limit exceeded",
					"key", key,
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				onLimited.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(models.NewErrorResponse(models.MessageThrottled))
}
