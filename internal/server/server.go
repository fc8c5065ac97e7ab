// Package server exposes the darkening pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/umbra/internal/page"
	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/security"
)

// maxCSSBody bounds POST /css request bodies.
const maxCSSBody = 5 << 20

// PrefsFunc returns the preferences for one request. It is called per page
// so that a settings change applies to the next page only.
type PrefsFunc func(ctx context.Context) (prefs.Preferences, error)

// Options configures the handler.
type Options struct {
	Prefs  PrefsFunc
	Page   page.Options // Prefs is replaced per request
	Logger hclog.Logger
}

// Handler serves:
//
//	GET  /darken?url=<page>  the darkened page
//	POST /css                the darkened request body
//	GET  /healthz
type Handler struct {
	opts   Options
	logger hclog.Logger
	mux    *http.ServeMux
}

// New creates a Handler.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	h := &Handler{opts: opts, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /darken", h.darken)
	h.mux.HandleFunc("POST /css", h.css)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) darken(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if !page.IsURL(target) {
		http.Error(w, "url must be an http or https URL", http.StatusBadRequest)
		return
	}

	p, err := h.opts.Prefs(r.Context())
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err)
		http.Error(w, "failed to load preferences", http.StatusInternalServerError)
		return
	}
	opts := h.opts.Page
	opts.Prefs = p

	start := time.Now()
	src, err := page.Load(r.Context(), target, "", opts)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, security.ErrUnsafeURL) {
			status = http.StatusForbidden
		}
		h.logger.Debug("failed to load page", "url", target, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	res, err := page.Darken(r.Context(), src, opts)
	if err != nil {
		h.logger.Error("failed to darken page", "url", target, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("page served", "url", target, "skipped", res.Skipped(),
		"elements", res.Stats.Elements, "sheets", res.Stats.Sheets+res.Stats.FetchedSheets,
		"duration", time.Since(start))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Umbra-State", res.State.String())
	w.Header().Set("X-Umbra-Elements", strconv.Itoa(res.Stats.Elements))
	_, _ = w.Write(res.HTML)
}

func (h *Handler) css(w http.ResponseWriter, r *http.Request) {
	body, err := security.ReadAllLimited(r.Body, maxCSSBody)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	p, err := h.opts.Prefs(r.Context())
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err)
		http.Error(w, "failed to load preferences", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, page.DarkenCSS(string(body), p))
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger hclog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}
