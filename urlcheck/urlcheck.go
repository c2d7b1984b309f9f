// Package urlcheck validates outbound URLs before fishwatch talks to them:
// scheme allow-listing, private/loopback address rejection, and bounded
// response reads.
package urlcheck

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrPrivateHost is returned when a URL targets a private/loopback address.
var ErrPrivateHost = errors.New("urlcheck: URL targets a private or loopback address")

// ErrScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrScheme = errors.New("urlcheck: only http and https schemes are allowed")

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("urlcheck: response body too large")

// ValidateScheme checks that rawURL parses, uses http or https, and has a
// hostname. It performs no address checks; use it where private hosts are
// acceptable (operator-configured internal receivers).
func ValidateScheme(rawURL string) error {
	_, err := parseHTTP(rawURL)
	return err
}

// Validate checks that rawURL uses http/https, has a hostname, and does not
// resolve to a private or loopback IP. DNS resolution is performed to catch
// internal hostnames.
func Validate(rawURL string) error {
	host, err := parseHTTP(rawURL)
	if err != nil {
		return err
	}

	// Check literal IP first.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateHost
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure: allow through, it might be a valid external host
		// that is temporarily unresolvable. The caller will get a network
		// error at connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateHost
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r, returning ErrTooLarge when
// the limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func parseHTTP(rawURL string) (host string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("urlcheck: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrScheme
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("urlcheck: URL has no host")
	}
	return u.Hostname(), nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
		"169.254.0.0/16",
		"::1/128",
	}
	for _, pr := range privateRanges {
		_, cidr, err := net.ParseCIDR(pr)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
