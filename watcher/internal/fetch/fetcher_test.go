package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mainefish/fishwatch/urlcheck"
)

// The target is plain http, so each httptest server below acts as an HTTP
// proxy: the client sends it the absolute-form request and the "proxy"
// answers for the origin directly.
const targetURL = "http://stocking.example/current_stocking_report.pdf"

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	if cfg.URL == "" {
		cfg.URL = targetURL
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func failingProxy(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func servingProxy(t *testing.T, hits *int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_RotationStopsAtFirstSuccess(t *testing.T) {
	// WHAT: With two always-failing proxies and a healthy third, the fetch
	// succeeds after exactly 2*AttemptsPerProxy+1 attempts and the fourth
	// proxy is never touched.
	// WHY: Rotation order and the first-success escape are the fetcher's
	// core contract.
	var hits1, hits2, hits3, hits4 int
	p1 := failingProxy(t, &hits1)
	p2 := failingProxy(t, &hits2)
	p3 := servingProxy(t, &hits3, "report body")
	p4 := servingProxy(t, &hits4, "never served")

	f := newTestFetcher(t, Config{
		Proxies:          []string{p1.URL, p2.URL, p3.URL, p4.URL},
		AttemptsPerProxy: 5,
	})

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Attempts != 11 {
		t.Errorf("attempts = %d, want 11", snap.Attempts)
	}
	if hits1 != 5 || hits2 != 5 {
		t.Errorf("failing proxies hit %d/%d times, want 5/5", hits1, hits2)
	}
	if hits3 != 1 {
		t.Errorf("winning proxy hit %d times, want 1", hits3)
	}
	if hits4 != 0 {
		t.Errorf("proxy after the winner hit %d times, want 0", hits4)
	}
	if snap.Proxy != p3.URL {
		t.Errorf("proxy = %q, want %q", snap.Proxy, p3.URL)
	}
	if string(snap.Body) != "report body" {
		t.Errorf("body = %q", snap.Body)
	}
}

func TestFetch_ExhaustionCountsAllAttempts(t *testing.T) {
	// WHAT: When every proxy always fails, the terminal error reports
	// exactly k*AttemptsPerProxy attempts.
	var hits1, hits2 int
	p1 := failingProxy(t, &hits1)
	p2 := failingProxy(t, &hits2)

	f := newTestFetcher(t, Config{
		Proxies:          []string{p1.URL, p2.URL},
		AttemptsPerProxy: 3,
	})

	_, err := f.Fetch(context.Background())
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 6 {
		t.Errorf("attempts = %d, want 6", exhausted.Attempts)
	}
	if hits1 != 3 || hits2 != 3 {
		t.Errorf("proxies hit %d/%d times, want 3/3", hits1, hits2)
	}
}

func TestFetch_EmptyProxyList(t *testing.T) {
	// WHAT: No proxies is a configuration error, reported with zero attempts.
	f := newTestFetcher(t, Config{})
	_, err := f.Fetch(context.Background())
	if !errors.Is(err, ErrNoProxies) {
		t.Fatalf("error = %v, want ErrNoProxies", err)
	}
}

func TestFetch_EmptyBodyIsSuccess(t *testing.T) {
	// WHAT: A 2xx response with an empty body is a successful fetch.
	// WHY: Whether empty content means anything is the caller's decision.
	var hits int
	p := servingProxy(t, &hits, "")

	f := newTestFetcher(t, Config{Proxies: []string{p.URL}})
	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Body) != 0 {
		t.Errorf("body = %q, want empty", snap.Body)
	}
	want := fmt.Sprintf("%X", sha256.Sum256(nil))
	if snap.Fingerprint != want {
		t.Errorf("fingerprint = %q, want %q", snap.Fingerprint, want)
	}
}

func TestFingerprint_UppercaseDeterministic(t *testing.T) {
	body := []byte("tight lines")
	first := Fingerprint(body)
	second := Fingerprint(body)
	if first != second {
		t.Fatalf("fingerprint not deterministic: %q vs %q", first, second)
	}
	want := fmt.Sprintf("%X", sha256.Sum256(body))
	if first != want {
		t.Fatalf("fingerprint = %q, want %q", first, want)
	}
	if len(first) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(first))
	}
}

func TestFetch_ContextDeadlineSurfacesAsExhaustion(t *testing.T) {
	// WHAT: A deadline expiring during the inter-attempt delay ends the run
	// as exhaustion wrapping the context error.
	// WHY: Host environments with execution deadlines need a terminal
	// failure, not partial state.
	var hits int
	p := failingProxy(t, &hits)

	f := newTestFetcher(t, Config{
		Proxies:          []string{p.URL},
		AttemptsPerProxy: 5,
		RetryDelay:       time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want wrapped DeadlineExceeded", err)
	}
	if exhausted.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (deadline cut the rotation short)", exhausted.Attempts)
	}
}

func TestFetchDirect(t *testing.T) {
	// WHAT: The direct path performs a single proxyless attempt.
	// WHY: Bulk mode fetches once, with no rotation and no change detection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct body"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{URL: srv.URL})
	snap, err := f.FetchDirect(context.Background())
	if err != nil {
		t.Fatalf("direct fetch: %v", err)
	}
	if snap.Proxy != "" {
		t.Errorf("proxy = %q, want empty", snap.Proxy)
	}
	if snap.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", snap.Attempts)
	}
	if string(snap.Body) != "direct body" {
		t.Errorf("body = %q", snap.Body)
	}
}

func TestFetch_OversizeBodyFailsAttempt(t *testing.T) {
	// WHAT: A body over MaxBytes fails the attempt rather than truncating.
	// WHY: A truncated document would fingerprint and parse as a different,
	// bogus report.
	var hits int
	p := servingProxy(t, &hits, "this body is longer than the limit")

	f := newTestFetcher(t, Config{
		Proxies:          []string{p.URL},
		AttemptsPerProxy: 1,
		MaxBytes:         10,
	})

	_, err := f.Fetch(context.Background())
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if !errors.Is(err, urlcheck.ErrTooLarge) {
		t.Fatalf("error = %v, want wrapped ErrTooLarge", err)
	}
}

func TestNew_RejectsBadProxy(t *testing.T) {
	_, err := New(Config{URL: targetURL, Proxies: []string{"ftp://proxy.example:21"}})
	if err == nil {
		t.Fatal("expected error for unsupported proxy scheme")
	}
}

func TestFetch_ProxyReceivesAbsoluteTarget(t *testing.T) {
	// WHAT: The proxy sees the configured origin, not its own address.
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{Proxies: []string{srv.URL}})
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotHost != "stocking.example" {
		t.Errorf("proxied host = %q, want stocking.example", gotHost)
	}
}
