// Package fetchproxy implements the background side of the stylesheet fetch
// proxy and the engine-side clients that reach it, either in process or in
// a separate umbra-fetchd process.
package fetchproxy

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/umbra/internal/config"
	"github.com/jmylchreest/umbra/internal/security"
	"github.com/jmylchreest/umbra/internal/util/cache"
	httputil "github.com/jmylchreest/umbra/internal/util/http"
	"github.com/jmylchreest/umbra/pkg/fetchproxy"
)

// Options configures a Background handler.
type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	AllowPrivate bool
	Cache        *cache.Disk
	Logger       hclog.Logger
}

// Background answers fetch proxy requests by fetching over HTTP.
type Background struct {
	opts   Options
	logger hclog.Logger
}

// NewBackground creates a Background handler.
func NewBackground(opts Options) *Background {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Background{opts: opts, logger: logger}
}

// FromConfig builds a Background handler from the fetch.* settings, opening
// the stylesheet cache when fetch.cache_ttl is set.
func FromConfig(cfg *config.Config, logger hclog.Logger) (*Background, error) {
	disk, err := cache.New(cache.Options{Dir: cfg.Fetch.CacheDir, TTL: cfg.Fetch.CacheTTL})
	if err != nil {
		return nil, err
	}
	return NewBackground(Options{
		Timeout:      cfg.Fetch.Timeout,
		MaxBytes:     cfg.Fetch.MaxBytes,
		AllowPrivate: cfg.Fetch.AllowPrivate,
		Cache:        disk,
		Logger:       logger,
	}), nil
}

// Handle implements fetchproxy.Handler.
func (b *Background) Handle(ctx context.Context, req fetchproxy.Request) fetchproxy.Response {
	if req.Action != fetchproxy.ActionFetchCSS {
		b.logger.Warn("rejecting request", "action", req.Action)
		return fetchproxy.Unsupported(req)
	}

	if err := security.ValidateFetchURL(req.URL, security.URLPolicy{AllowPrivate: b.opts.AllowPrivate}); err != nil {
		return fetchproxy.Response{Error: err.Error()}
	}

	if data, ok := b.opts.Cache.Get(req.URL); ok {
		b.logger.Debug("stylesheet served from cache", "url", req.URL)
		return fetchproxy.Response{CSSText: string(data)}
	}

	res, err := httputil.Fetch(ctx, req.URL, httputil.FetchOptions{
		Timeout:  b.opts.Timeout,
		MaxBytes: b.opts.MaxBytes,
		Headers:  map[string]string{"Accept": "text/css,*/*;q=0.1"},
	})
	if err != nil {
		b.logger.Debug("stylesheet fetch failed", "url", req.URL, "error", err)
		return fetchproxy.Response{Error: err.Error()}
	}

	if err := b.opts.Cache.Put(req.URL, res.Data); err != nil {
		b.logger.Warn("failed to cache stylesheet", "url", req.URL, "error", err)
	}
	b.logger.Debug("stylesheet fetched", "url", req.URL, "bytes", len(res.Data))
	return fetchproxy.Response{CSSText: string(res.Data)}
}
