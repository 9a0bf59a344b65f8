package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"safety-dashboard/internal/platform/metrics"
)

// Middleware returns chi-compatible middleware that gates requests through
// the limiter, keyed by client IP. Rejected requests get 429 with a
// Retry-After header; rejection is an expected outcome, logged at debug, not
// an error. Metrics may be nil.
func Middleware(l *Limiter, log *slog.Logger, m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := clientIP(r)
			decision := l.Admit(identity, time.Now())
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}

			if m != nil {
				m.IncAdmissionRejected()
			}
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Debug("request rejected by rate limiter",
				slog.String("client", identity),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after_seconds", retryAfter),
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
		})
	}
}

// clientIP extracts the host part of RemoteAddr, falling back to the whole
// string when it has no port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
