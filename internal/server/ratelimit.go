package server

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// newRateLimitMiddleware shares one token bucket across all API requests.
func newRateLimitMiddleware(basePath string, perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, basePath) && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respondStatusError(w, newAPIError(http.StatusTooManyRequests, "rate_limited", "too many requests", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
