package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/umbra/internal/page"
	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/stylesheet"
)

const upstreamPage = `<html><head></head><body><p style="color: #000">hi</p></body></html>`

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, upstreamPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticPrefs(active bool) PrefsFunc {
	return func(context.Context) (prefs.Preferences, error) {
		p := prefs.Defaults()
		p.IsActive = active
		return p, nil
	}
}

func newHandler(pf PrefsFunc, allowPrivate bool) *Handler {
	return New(Options{
		Prefs: pf,
		Page: page.Options{
			PollInterval: 5 * time.Millisecond,
			FetchTimeout: 5 * time.Second,
			AllowPrivate: allowPrivate,
		},
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDarken(t *testing.T) {
	up := upstream(t)
	h := newHandler(staticPrefs(true), true)

	rec := get(t, h, "/darken?url="+url.QueryEscape(up.URL+"/"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "steady", rec.Header().Get("X-Umbra-State"))
	assert.Equal(t, "1", rec.Header().Get("X-Umbra-Elements"))
	assert.Contains(t, rec.Body.String(), `style="color: rgb(255,255,255) !important"`)
}

func TestDarkenInactive(t *testing.T) {
	up := upstream(t)
	h := newHandler(staticPrefs(false), true)

	rec := get(t, h, "/darken?url="+url.QueryEscape(up.URL+"/"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", rec.Header().Get("X-Umbra-State"))
	assert.Contains(t, rec.Body.String(), `style="color: #000"`)
}

func TestDarkenErrors(t *testing.T) {
	up := upstream(t)

	tests := []struct {
		name   string
		h      *Handler
		target string
		want   int
	}{
		{"missing url", newHandler(staticPrefs(true), true), "/darken", http.StatusBadRequest},
		{"file url", newHandler(staticPrefs(true), true), "/darken?url=file:///etc/passwd", http.StatusBadRequest},
		{"private upstream", newHandler(staticPrefs(true), false), "/darken?url=" + url.QueryEscape(up.URL), http.StatusForbidden},
		{"prefs failure", newHandler(func(context.Context) (prefs.Preferences, error) {
			return prefs.Preferences{}, errors.New("database is locked")
		}, true), "/darken?url=" + url.QueryEscape(up.URL), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, get(t, tt.h, tt.target).Code)
		})
	}
}

func TestCSS(t *testing.T) {
	h := newHandler(staticPrefs(false), false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/css", strings.NewReader("a { color: #000 }")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stylesheet.Marker+"\na { color: rgb(255,255,255) }", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := get(t, newHandler(staticPrefs(true), false), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, "127.0.0.1:0", newHandler(staticPrefs(true), false), hclog.NewNullLogger())
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
