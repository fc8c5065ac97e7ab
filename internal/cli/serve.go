package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve darkened pages over HTTP",
		Long: `Start an HTTP server that darkens pages on request.

  GET  /darken?url=<page>   fetch, darken and return the page
  POST /css                 darken the stylesheet in the request body
  GET  /healthz             liveness check

Preferences are re-read for every request, so "umbra prefs" changes apply to
the next page served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			fetcher, closeFetcher, err := e.newFetcher()
			if err != nil {
				return err
			}
			defer closeFetcher()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := server.New(server.Options{
				Prefs: func(ctx context.Context) (prefs.Preferences, error) {
					return e.loadPrefs(ctx)
				},
				Page:   e.pageOptions(prefs.Preferences{}, fetcher),
				Logger: e.logger.Named("server"),
			})
			return server.ListenAndServe(ctx, e.cfg.Server.Listen, h, e.logger.Named("server"))
		},
	}

	cmd.Flags().StringP("listen", "l", "", "listen address (default: server.listen)")
	return cmd
}
