// Package security provides validation for URLs and untrusted input sizes.
package security

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"net/url"
	"strings"
)

// ErrUnsafeURL is returned for URLs the fetcher refuses to request.
var ErrUnsafeURL = errors.New("unsafe URL")

// ErrLimitExceeded is returned by LimitedReader once its budget is spent.
var ErrLimitExceeded = errors.New("size limit exceeded")

// URLPolicy controls which URLs ValidateFetchURL accepts.
type URLPolicy struct {
	// AllowPrivate permits loopback, private and link-local hosts.
	AllowPrivate bool
}

// ValidateFetchURL checks that urlStr is an absolute http(s) URL with a host,
// and unless the policy allows it, not a local or private one.
func ValidateFetchURL(urlStr string, policy URLPolicy) error {
	if urlStr == "" {
		return fmt.Errorf("%w: empty URL", ErrUnsafeURL)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsafeURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: only http:// and https:// are allowed (got %q)", ErrUnsafeURL, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: URL must have a hostname", ErrUnsafeURL)
	}

	host := strings.ToLower(parsed.Hostname())
	if !policy.AllowPrivate && isLocalOrPrivateHost(host) {
		return fmt.Errorf("%w: URL cannot point to local or private hosts: %s", ErrUnsafeURL, host)
	}

	return nil
}

// LimitedReader wraps an io.Reader and fails once more than its budget has
// been read, so oversized or decompression-bomb input is rejected rather
// than truncated.
type LimitedReader struct {
	R         io.Reader
	Remaining int64
}

// Read implements io.Reader with size limits.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Remaining < 0 {
		return 0, ErrLimitExceeded
	}
	// Read one byte past the budget to tell "exactly at the limit" from
	// "over it".
	if int64(len(p)) > l.Remaining+1 {
		p = p[:l.Remaining+1]
	}
	n, err := l.R.Read(p)
	l.Remaining -= int64(n)
	if l.Remaining < 0 {
		return n + int(l.Remaining), ErrLimitExceeded
	}
	return n, err
}

// NewLimitedReader creates a new LimitedReader with the specified size limit.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{
		R:         r,
		Remaining: maxBytes,
	}
}

// ReadAllLimited reads r to the end, failing if it holds more than maxBytes.
func ReadAllLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(NewLimitedReader(r, maxBytes))
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			return nil, fmt.Errorf("input larger than %d bytes: %w", maxBytes, err)
		}
		return nil, err
	}
	return data, nil
}

// isLocalOrPrivateHost checks if a hostname is localhost or a private IP.
func isLocalOrPrivateHost(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
