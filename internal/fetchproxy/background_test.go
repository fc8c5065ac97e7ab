package fetchproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/umbra/internal/config"
	"github.com/jmylchreest/umbra/internal/util/cache"
	"github.com/jmylchreest/umbra/pkg/fetchproxy"
)

func cssServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/site.css" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body { background: #fff }"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestBackgroundHandle(t *testing.T) {
	srv, _ := cssServer(t)
	bg := NewBackground(Options{Timeout: time.Second, AllowPrivate: true})
	ctx := context.Background()

	resp := bg.Handle(ctx, fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: srv.URL + "/site.css"})
	assert.Equal(t, fetchproxy.Response{CSSText: "body { background: #fff }"}, resp)

	resp = bg.Handle(ctx, fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: srv.URL + "/missing.css"})
	assert.Empty(t, resp.CSSText)
	assert.Contains(t, resp.Error, "HTTP 404")

	resp = bg.Handle(ctx, fetchproxy.Request{Action: "fetchJs", URL: srv.URL + "/site.css"})
	assert.Contains(t, resp.Error, fetchproxy.ErrUnsupportedAction.Error())
}

func TestBackgroundRejectsUnsafeURLs(t *testing.T) {
	srv, hits := cssServer(t)
	bg := NewBackground(Options{})

	for _, u := range []string{srv.URL + "/site.css", "file:///etc/passwd", "/relative.css", ""} {
		resp := bg.Handle(context.Background(), fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: u})
		assert.Contains(t, resp.Error, "unsafe URL", u)
	}
	assert.Zero(t, hits.Load())
}

func TestBackgroundCache(t *testing.T) {
	srv, hits := cssServer(t)
	disk, err := cache.New(cache.Options{Dir: t.TempDir(), TTL: time.Hour})
	require.NoError(t, err)

	bg := NewBackground(Options{AllowPrivate: true, Cache: disk})
	req := fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: srv.URL + "/site.css"}

	first := bg.Handle(context.Background(), req)
	second := bg.Handle(context.Background(), req)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDirect(t *testing.T) {
	srv, _ := cssServer(t)
	d := Direct{Handler: NewBackground(Options{AllowPrivate: true})}

	css, err := d.FetchCSS(context.Background(), srv.URL+"/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body { background: #fff }", css)

	_, err = d.FetchCSS(context.Background(), srv.URL+"/nope.css")
	require.Error(t, err)
	var rpcErr *fetchproxy.RPCError
	assert.True(t, errors.As(err, &rpcErr))
}

func TestRemoteClosed(t *testing.T) {
	r := &Remote{}
	_, err := r.FetchCSS(context.Background(), "https://example.com/a.css")
	assert.Error(t, err)
	r.Close()
}

func TestFromConfig(t *testing.T) {
	srv, hits := cssServer(t)
	cfg := config.DefaultConfig()
	cfg.Fetch.AllowPrivate = true
	cfg.Fetch.CacheDir = t.TempDir()
	cfg.Fetch.CacheTTL = time.Minute

	bg, err := FromConfig(cfg, nil)
	require.NoError(t, err)

	req := fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: srv.URL + "/site.css"}
	require.NoError(t, bg.Handle(context.Background(), req).Err())
	require.NoError(t, bg.Handle(context.Background(), req).Err())
	assert.Equal(t, int32(1), hits.Load())
}

func TestLaunchMissingDaemon(t *testing.T) {
	_, err := Launch(filepath.Join(t.TempDir(), "umbra-fetchd"), nil, nil)
	assert.Error(t, err)
}
