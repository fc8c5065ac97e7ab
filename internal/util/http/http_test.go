package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/site.css":
			assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "umbra/"))
			assert.Equal(t, "text/css", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			_, _ = w.Write([]byte("body { color: #000 }"))
		case "/big.css":
			_, _ = w.Write([]byte(strings.Repeat("a", 64)))
		case "/moved.css":
			http.Redirect(w, r, "/site.css", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	opts := FetchOptions{Headers: map[string]string{"Accept": "text/css"}}

	res, err := Fetch(ctx, srv.URL+"/site.css", opts)
	require.NoError(t, err)
	assert.Equal(t, "body { color: #000 }", string(res.Data))
	assert.Equal(t, "text/css; charset=utf-8", res.ContentType)

	res, err = Fetch(ctx, srv.URL+"/moved.css", opts)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/site.css", res.URL)

	_, err = Fetch(ctx, srv.URL+"/missing.css", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, err = Fetch(ctx, srv.URL+"/big.css", FetchOptions{MaxBytes: 16})
	assert.Error(t, err)
}
