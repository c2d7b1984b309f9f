// Package fetch retrieves the stocking report through an ordered list of
// egress proxies, retrying each a bounded number of times before moving on.
// The first successful attempt anywhere wins; spending every proxy's budget
// is the terminal failure.
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/mainefish/fishwatch/urlcheck"
)

// Snapshot is one successfully fetched document.
type Snapshot struct {
	Body        []byte
	Fingerprint string // uppercase SHA-256 hex of Body
	StatusCode  int
	Proxy       string // proxy that served the winning attempt, "" for direct
	Attempts    int    // attempts across all proxies, including the winner
}

// ErrNoProxies is returned by Fetch when no proxies are configured.
var ErrNoProxies = errors.New("fetch: no proxies configured")

// ExhaustedError is the terminal failure: every proxy spent its retry
// budget without a successful response.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch: all proxies exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Config configures the fetcher.
type Config struct {
	// URL is the document to fetch.
	URL string
	// Proxies are tried in order. Each entry is an http://, https:// or
	// socks5:// endpoint, optionally with userinfo.
	Proxies []string
	// AttemptsPerProxy bounds retries on one proxy. Default: 5.
	AttemptsPerProxy int
	// RetryDelay is the blocking wait between failed attempts. Default: 5s.
	RetryDelay time.Duration
	// Timeout is the per-attempt HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body size. Default: 32 MiB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates the target and redirect URLs before requests.
	// Default: urlcheck.ValidateScheme (the source URL is operator config,
	// so private hosts are acceptable).
	URLValidator func(string) error
	// Logger for per-attempt outcomes. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.AttemptsPerProxy <= 0 {
		c.AttemptsPerProxy = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "fishwatch/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = urlcheck.ValidateScheme
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher fetches one URL through rotating proxies.
type Fetcher struct {
	config  Config
	direct  *http.Client
	clients []*http.Client // one per proxy, same order as config.Proxies
}

// New builds a Fetcher, constructing one HTTP client per proxy up front so
// a malformed proxy URL fails at startup rather than mid-rotation.
func New(cfg Config) (*Fetcher, error) {
	cfg.defaults()
	if err := cfg.URLValidator(cfg.URL); err != nil {
		return nil, fmt.Errorf("fetch: url: %w", err)
	}

	f := &Fetcher{
		config: cfg,
		direct: &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: redirectPolicy(cfg.URLValidator),
		},
	}
	for _, p := range cfg.Proxies {
		client, err := clientForProxy(p, cfg)
		if err != nil {
			return nil, fmt.Errorf("fetch: proxy %s: %w", p, err)
		}
		f.clients = append(f.clients, client)
	}
	return f, nil
}

// rotationState is one node of the retry state machine. Keeping the
// transition table in Fetch makes the ordering guarantee (proxy n+1 never
// starts before proxy n's budget is spent) independent of loop shape.
type rotationState int

const (
	stateNextProxy rotationState = iota
	stateAttempt
	stateDelay
	stateSuccess
	stateExhausted
)

// Fetch walks the proxy list in order. It returns the first successful
// Snapshot, ErrNoProxies for an empty list, or *ExhaustedError once every
// proxy's attempt budget is spent. Context cancellation during an attempt
// or a delay also surfaces as exhaustion.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	if len(f.clients) == 0 {
		return nil, ErrNoProxies
	}

	var (
		state    = stateNextProxy
		proxyIdx = -1
		attempt  = 0 // 1-based within the current proxy
		total    = 0
		lastErr  error
		snap     *Snapshot
	)

	for {
		switch state {
		case stateNextProxy:
			proxyIdx++
			if proxyIdx >= len(f.clients) {
				state = stateExhausted
				break
			}
			attempt = 0
			state = stateAttempt

		case stateAttempt:
			attempt++
			total++
			proxy := f.config.Proxies[proxyIdx]
			s, err := f.attempt(ctx, f.clients[proxyIdx], proxy)
			if err == nil {
				s.Attempts = total
				snap = s
				state = stateSuccess
				break
			}
			lastErr = err
			f.config.Logger.Warn("fetch: attempt failed",
				"proxy", proxy, "attempt", attempt, "error", err)
			switch {
			case ctx.Err() != nil:
				state = stateExhausted
			case attempt >= f.config.AttemptsPerProxy && proxyIdx == len(f.clients)-1:
				// Final attempt of the final proxy: no closing delay.
				state = stateExhausted
			default:
				state = stateDelay
			}

		case stateDelay:
			if err := sleepCtx(ctx, f.config.RetryDelay); err != nil {
				lastErr = err
				state = stateExhausted
				break
			}
			if attempt >= f.config.AttemptsPerProxy {
				state = stateNextProxy
			} else {
				state = stateAttempt
			}

		case stateSuccess:
			f.config.Logger.Info("fetch: success",
				"proxy", snap.Proxy, "attempts", snap.Attempts, "bytes", len(snap.Body))
			return snap, nil

		case stateExhausted:
			return nil, &ExhaustedError{Attempts: total, LastErr: lastErr}
		}
	}
}

// FetchDirect performs a single proxyless fetch. The bulk exporter uses it;
// there is no retry and no change detection on that path.
func (f *Fetcher) FetchDirect(ctx context.Context) (*Snapshot, error) {
	snap, err := f.attempt(ctx, f.direct, "")
	if err != nil {
		return nil, fmt.Errorf("fetch: direct: %w", err)
	}
	snap.Attempts = 1
	return snap, nil
}

// attempt performs one GET through the given client. Any non-2xx status is
// a failed attempt; an empty 2xx body is a success (the caller decides
// whether empty content means anything).
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, via string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := urlcheck.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Snapshot{
		Body:        body,
		Fingerprint: Fingerprint(body),
		StatusCode:  resp.StatusCode,
		Proxy:       via,
	}, nil
}

// Fingerprint returns the uppercase SHA-256 hex digest of body.
func Fingerprint(body []byte) string {
	h := sha256.Sum256(body)
	return fmt.Sprintf("%X", h)
}

func redirectPolicy(validate func(string) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("too many redirects (%d)", len(via))
		}
		if err := validate(req.URL.String()); err != nil {
			return fmt.Errorf("redirect blocked: %w", err)
		}
		return nil
	}
}

// clientForProxy builds an HTTP client routed through one proxy endpoint.
func clientForProxy(raw string, cfg Config) (*http.Client, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var transport *http.Transport
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(u)}
	case "socks5":
		var auth *xproxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5: %w", err)
		}
		transport = &http.Transport{}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     transport,
		CheckRedirect: redirectPolicy(cfg.URLValidator),
	}, nil
}

// sleepCtx blocks for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
