package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/ratelimit"
)

// RateLimit throttles by client IP. Put chi's RealIP in front of it when the
// service runs behind a proxy.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				logging.FromContext(r.Context()).WithField("client", key).Warn("rate limit exceeded")
				writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse("Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
