package httpguard

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHeaders_SetOnEveryResponse(t *testing.T) {
	h := Headers(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("CSP = %q, want default-src 'none'", csp)
	}
}

func TestRequestLog_IDAndStatus(t *testing.T) {
	// WHAT: Every response carries an X-Request-ID and the log line records
	// the handler's status code, not the default 200.
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/missing", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
	out := buf.String()
	if !strings.Contains(out, `"status":404`) {
		t.Errorf("log = %s, want status 404 recorded", out)
	}
	if !strings.Contains(out, `"path":"/api/missing"`) {
		t.Errorf("log = %s, want path recorded", out)
	}
}

func TestBodyLimit_StopsOversizeRead(t *testing.T) {
	var readErr error
	h := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		if readErr != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := strings.NewReader(strings.Repeat("x", 100))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/check", body))

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("read error = %v, want MaxBytesError", readErr)
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestLimiter_BlocksOverLimit(t *testing.T) {
	l := NewLimiter(2, time.Minute, slog.Default())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/check", nil)
		req.RemoteAddr = "10.0.0.7:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestLimiter_WindowResets(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond, slog.Default())

	if !l.allow("10.0.0.7", time.Now()) {
		t.Fatal("first request blocked")
	}
	if l.allow("10.0.0.7", time.Now()) {
		t.Fatal("second request in window allowed")
	}
	if !l.allow("10.0.0.7", time.Now().Add(30*time.Millisecond)) {
		t.Error("request after window blocked")
	}
}

func TestLimiter_IndependentClients(t *testing.T) {
	// WHAT: Each client IP has its own budget; one client exceeding the
	// limit does not block another.
	l := NewLimiter(1, time.Minute, slog.Default())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(xff string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/check", nil)
		req.Header.Set("X-Forwarded-For", xff)
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1"); got != 200 {
		t.Errorf("first client first request = %d, want 200", got)
	}
	if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("first client second request = %d, want 429", got)
	}
	if got := send("10.0.0.2"); got != 200 {
		t.Errorf("second client = %d, want 200", got)
	}
}
