package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/telemetry"
)

// Middleware gates requests under pathPrefix through the limiter. Everything
// else passes through unconditionally. Denied requests get a 429 with the
// retry-after both in the JSON body and the Retry-After header.
func Middleware(limiter *Limiter, pathPrefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pathPrefix != "" && !strings.HasPrefix(r.URL.Path, pathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			decision := limiter.Reserve(key, IsAuthenticated(r))
			if !decision.Allowed {
				logger.Warn("request rate limited",
					zap.String("client", key),
					zap.String("reason", decision.Reason),
					zap.Duration("retry_after", decision.RetryAfter),
				)
				telemetry.IncRateLimited(decision.Reason)
				writeRateLimited(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey derives the limiter key for a request: the first hop of
// X-Forwarded-For when present, else the connection's host, else "unknown".
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// IsAuthenticated reports whether a bearer-style credential accompanies the
// request. The token itself is not verified here.
func IsAuthenticated(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeRateLimited(w http.ResponseWriter, decision Decision) {
	seconds := int(decision.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":       "rate limit exceeded, try again later",
		"retry_after": seconds,
	})
}
