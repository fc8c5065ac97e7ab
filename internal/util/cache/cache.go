// Package cache keeps fetched remote resources on disk, keyed by URL.
package cache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Options configures a Disk cache.
type Options struct {
	// Dir is the directory where entries are stored.
	// If empty, defaults to <user cache dir>/umbra/sheets.
	Dir string

	// TTL is how long an entry stays fresh. Zero disables the cache.
	TTL time.Duration
}

// Disk is a file-per-entry cache. Entries expire by modification time.
type Disk struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// DefaultDir returns the default cache directory path.
func DefaultDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Fallback to home directory if cache dir not available.
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		return filepath.Join(home, ".cache", "umbra", "sheets"), nil
	}
	return filepath.Join(cacheDir, "umbra", "sheets"), nil
}

// New creates a Disk cache, or returns nil when opts.TTL is zero.
func New(opts Options) (*Disk, error) {
	if opts.TTL <= 0 {
		return nil, nil
	}

	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Disk{dir: dir, ttl: opts.TTL, now: time.Now}, nil
}

// Get returns the cached body for url if it is still fresh. A nil cache
// never hits.
func (d *Disk) Get(url string) ([]byte, bool) {
	if d == nil {
		return nil, false
	}
	path := d.path(url)
	info, err := os.Stat(path)
	if err != nil || d.now().Sub(info.ModTime()) > d.ttl {
		return nil, false
	}
	data, err := os.ReadFile(path) // #nosec G304 - Path derived from URL hash
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores data for url. A nil cache discards it.
func (d *Disk) Put(url string, data []byte) error {
	if d == nil {
		return nil
	}
	tmp, err := os.CreateTemp(d.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(url)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// path creates a deterministic filename from a URL: the first 16 bytes of
// its SHA256 in hex.
func (d *Disk) path(url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(d.dir, fmt.Sprintf("%x.css", hash[:16]))
}
