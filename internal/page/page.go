// Package page runs the darkening engine over a whole HTML document: it
// loads the source, lets the engine paint, sweep and settle, and renders the
// result.
package page

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/umbra/internal/compression"
	"github.com/jmylchreest/umbra/internal/dom"
	"github.com/jmylchreest/umbra/internal/engine"
	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/rewrite"
	"github.com/jmylchreest/umbra/internal/security"
	"github.com/jmylchreest/umbra/internal/stylesheet"
	httputil "github.com/jmylchreest/umbra/internal/util/http"
)

// Options configures a page run.
type Options struct {
	Prefs   prefs.Preferences
	Fetcher engine.Fetcher
	Logger  hclog.Logger

	PollInterval time.Duration
	ReadyTimeout time.Duration

	// MaxBytes bounds the source document, before and after decompression.
	MaxBytes int64
	// FetchTimeout bounds loading a remote source document.
	FetchTimeout time.Duration
	// AllowPrivate permits remote sources on loopback and private networks.
	AllowPrivate bool
}

// Source is a loaded, decompressed document.
type Source struct {
	Data []byte
	// Name is the file name or URL, without any compression suffix.
	Name string
	// Base resolves relative references and supplies the hostname the
	// preferences are checked against. It may be nil.
	Base *url.URL
}

// Result is a darkened document.
type Result struct {
	HTML     []byte
	Hostname string
	State    engine.State
	Stats    engine.Stats
}

// Skipped reports whether the preferences left the document untouched.
func (r *Result) Skipped() bool {
	return r.State == engine.StateIdle
}

// IsURL reports whether src names an http or https resource.
func IsURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load reads src, a file path or http(s) URL, and decompresses it when
// needed. For files, hostname becomes the document host so that blacklist
// entries apply to saved pages; URLs keep their own host.
func Load(ctx context.Context, src, hostname string, opts Options) (*Source, error) {
	var (
		data        []byte
		contentType string
		base        *url.URL
	)

	if IsURL(src) {
		if err := security.ValidateFetchURL(src, security.URLPolicy{AllowPrivate: opts.AllowPrivate}); err != nil {
			return nil, err
		}
		res, err := httputil.Fetch(ctx, src, httputil.FetchOptions{
			Timeout:  opts.FetchTimeout,
			MaxBytes: opts.MaxBytes,
			Headers:  map[string]string{"Accept": "text/html,application/xhtml+xml,*/*;q=0.8"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
		}
		data, contentType = res.Data, res.ContentType
		base, err = url.Parse(res.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid final URL %q: %w", res.URL, err)
		}
	} else {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", src, err)
		}
		f, err := os.Open(abs) // #nosec G304 - Input path comes from the command line
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", src, err)
		}
		defer f.Close()

		data, err = security.ReadAllLimited(f, maxBytes(opts))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src, err)
		}
		base = &url.URL{Scheme: "file", Host: hostname, Path: filepath.ToSlash(abs)}
	}

	res, err := compression.Decompress(data, src, contentType, maxBytes(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", src, err)
	}

	return &Source{Data: res.Data, Name: res.Name, Base: base}, nil
}

// Darken parses src, runs an engine over it until every task and fetch has
// settled, and renders the document.
func Darken(ctx context.Context, src *Source, opts Options) (*Result, error) {
	doc, err := dom.Parse(bytes.NewReader(src.Data), src.Base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", src.Name, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(doc, engine.Options{
		Prefs:        opts.Prefs,
		Fetcher:      opts.Fetcher,
		Logger:       logger.Named("engine").With("page", src.Name),
		PollInterval: opts.PollInterval,
		ReadyTimeout: opts.ReadyTimeout,
	})
	if err := eng.Start(runCtx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	if err := eng.Settle(runCtx); err != nil {
		return nil, fmt.Errorf("failed waiting for %s to settle: %w", src.Name, err)
	}

	var buf bytes.Buffer
	var renderErr error
	if err := eng.Do(runCtx, func(doc *dom.Document) { renderErr = doc.Render(&buf) }); err != nil {
		return nil, err
	}
	if renderErr != nil {
		return nil, fmt.Errorf("failed to render %s: %w", src.Name, renderErr)
	}

	return &Result{
		HTML:     buf.Bytes(),
		Hostname: doc.Hostname(),
		State:    eng.State(),
		Stats:    eng.Stats(),
	}, nil
}

// DarkenCSS rewrites a standalone stylesheet with the preferences'
// thresholds. var() references are left alone since there is no document to
// resolve them against.
func DarkenCSS(css string, p prefs.Preferences) string {
	rw := rewrite.New(rewrite.DefaultTable(), p.Thresholds())
	return stylesheet.New(rw, nil).RewriteText(css)
}

func maxBytes(opts Options) int64 {
	if opts.MaxBytes > 0 {
		return opts.MaxBytes
	}
	return compression.DefaultMaxBytes
}
