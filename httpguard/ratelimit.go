package httpguard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter is a fixed-window per-client rate limiter. Windows live in
// memory: the admin API sees a handful of clients, and limits that reset
// on restart are acceptable there.
type Limiter struct {
	max    int
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

// NewLimiter allows max requests per client per window.
func NewLimiter(max int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		max:     max,
		window:  window,
		logger:  logger,
		buckets: make(map[string]*bucket),
	}
}

func (l *Limiter) allow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Expired buckets for idle clients are swept only under pressure;
	// below the threshold they are just overwritten on next use.
	if len(l.buckets) > 1024 {
		for k, b := range l.buckets {
			if now.After(b.resetAt) {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[client]
	if !ok || now.After(b.resetAt) {
		l.buckets[client] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	b.count++
	return b.count <= l.max
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if l.allow(client, time.Now()) {
			next.ServeHTTP(w, r)
			return
		}

		l.logger.Warn("http: rate limited", "remote", client, "path", r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(l.window/time.Second)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}
