// Package httpguard provides the HTTP middleware applied to the fishwatch
// admin API: security headers, per-request logging with request IDs, body
// caps, and rate limiting for the manual check trigger.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(httpguard.RequestLog(logger))
//	r.Use(httpguard.Headers)
//	r.Use(httpguard.BodyLimit(64 * 1024))
package httpguard

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mainefish/fishwatch/idgen"
)

// RequestLog assigns each request an ID, exposes it as X-Request-ID, and
// writes one log line per request with method, path, status and duration.
func RequestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := idgen.New()
			w.Header().Set("X-Request-ID", id)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)

			logger.Info("http: request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", clientIP(r))
		})
	}
}

// statusWriter records the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// clientIP returns the first X-Forwarded-For hop when present, otherwise
// the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
