package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixmind/genomeguard/internal/api/response"
	"github.com/helixmind/genomeguard/internal/cache"
)

const (
	defaultRequestsPerMinute = 60

	// Uploads dispatch background pipeline work, so they get a tighter
	// budget than read-side polling.
	uploadBudgetDivisor = 6

	rateLimitWindow = time.Minute
)

// RateLimit provides sliding-window rate limiting via Redis. Polling reads
// and uploads are counted in separate buckets per API key.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	uploadsPerMin  int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	uploads := requestsPerMin / uploadBudgetDivisor
	if uploads < 1 {
		uploads = 1
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, uploadsPerMin: uploads}
}

// Limit applies rate limiting based on the key_prefix set by auth middleware.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// No key prefix means auth middleware didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(prefix)
		limit := rl.requestsPerMin
		if isUpload(r) {
			key += ":upload"
			limit = rl.uploadsPerMin
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateLimitWindow)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetTime := time.Now().Add(rateLimitWindow).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if count > int64(limit) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isUpload(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/analysis/upload")
}
