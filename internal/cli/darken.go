package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/umbra/internal/page"
)

type darkenOptions struct {
	output   string
	hostname string
	watch    bool
	jobs     int
	stats    bool
}

func newDarkenCmd() *cobra.Command {
	opts := &darkenOptions{}

	cmd := &cobra.Command{
		Use:   "darken <file|url>...",
		Short: "Darken HTML pages",
		Long: `Darken one or more HTML pages and write the result.

Inputs are local files or http(s) URLs. Files may be gzip, xz or bzip2
compressed. With a single input and no --output the page is written to
stdout; otherwise --output names a directory that receives one file per
input.

The preferences database decides whether a page is darkened at all: when
umbra is inactive, or the page's host is blacklisted, the page is written
unchanged. Saved files have no host, so use --hostname to apply blacklist
entries to them.

Examples:
  # Darken a saved page to stdout
  umbra darken page.html

  # Darken several pages in parallel into a directory
  umbra darken -o dark/ a.html b.html.gz https://example.com/

  # Rebuild whenever the file changes
  umbra darken --watch -o dark/ page.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDarken(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default: stdout for a single input)")
	cmd.Flags().StringVar(&opts.hostname, "hostname", "", "hostname to assume for local files")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-darken local files when they change")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "number of pages to darken in parallel")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print per-page statistics to stderr")

	return cmd
}

func runDarken(cmd *cobra.Command, opts *darkenOptions, inputs []string) error {
	if len(inputs) > 1 && opts.output == "" {
		return errors.New("--output is required with more than one input")
	}
	if opts.watch {
		for _, in := range inputs {
			if page.IsURL(in) {
				return fmt.Errorf("--watch only works with local files, got %s", in)
			}
		}
	}
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	p, err := e.loadPrefs(ctx)
	if err != nil {
		return err
	}

	fetcher, closeFetcher, err := e.newFetcher()
	if err != nil {
		return err
	}
	defer closeFetcher()

	if opts.output != "" {
		if err := os.MkdirAll(opts.output, 0o755); err != nil { // #nosec G301 - Output directory needs standard permissions
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	d := &darkener{
		opts:   opts,
		page:   e.pageOptions(p, fetcher),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for _, in := range inputs {
		g.Go(func() error {
			return d.run(gctx, in)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.watch {
		return d.watch(ctx, inputs)
	}
	return nil
}

// darkener darkens single inputs and writes them out. It is safe for
// concurrent use.
type darkener struct {
	opts   *darkenOptions
	page   page.Options
	stdout io.Writer
	stderr io.Writer

	mu sync.Mutex // serialises writes to stdout and stderr
}

func (d *darkener) run(ctx context.Context, input string) error {
	src, err := page.Load(ctx, input, d.opts.hostname, d.page)
	if err != nil {
		return err
	}

	res, err := page.Darken(ctx, src, d.page)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.stats {
		writeStats(d.stderr, input, res)
	}

	if d.opts.output == "" {
		_, err := io.Copy(d.stdout, bytes.NewReader(res.HTML))
		return err
	}

	dest := filepath.Join(d.opts.output, outputName(src.Name))
	if err := os.WriteFile(dest, res.HTML, 0o644); err != nil { // #nosec G306 - Darkened pages are not sensitive
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// watch re-darkens inputs whenever they are written. It watches the parent
// directories so that editors that replace files by rename are seen.
func (d *darkener) watch(ctx context.Context, inputs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]string, len(inputs))
	dirs := make(map[string]bool)
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		watched[abs] = in
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			in, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			if err := d.run(ctx, in); err != nil {
				d.mu.Lock()
				fmt.Fprintf(d.stderr, "%s: %v\n", in, err)
				d.mu.Unlock()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)
		}
	}
}

// outputName derives an output file name from a file path or URL.
func outputName(name string) string {
	if page.IsURL(name) {
		u, err := url.Parse(name)
		if err == nil {
			base := path.Base(u.Path)
			if base == "/" || base == "." || base == "" {
				base = "index.html"
			}
			return sanitise(u.Hostname() + "_" + base)
		}
	}
	return sanitise(filepath.Base(name))
}

func sanitise(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func writeStats(w io.Writer, input string, res *page.Result) {
	t := NewTable("page", "state", "elements", "sheets", "fetched", "failed", "images")
	t.AddRow(input, res.State.String(),
		fmt.Sprint(res.Stats.Elements),
		fmt.Sprint(res.Stats.Sheets),
		fmt.Sprint(res.Stats.FetchedSheets),
		fmt.Sprint(res.Stats.FetchFailures),
		fmt.Sprint(res.Stats.DimmedImages))
	_ = t.Render(w)
}
