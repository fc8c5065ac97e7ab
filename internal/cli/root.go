// Package cli provides the command-line interface for umbra.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/umbra/internal/version"
)

// NewRootCmd builds the umbra command tree. Each call returns an independent
// tree, so tests can execute commands without sharing flag state.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "umbra",
		Short: "Render web pages with a dark colour scheme",
		Long: `umbra rewrites the colours of web pages so that light pages read dark.

It parses a page, paints a placeholder scheme, sweeps every element's colour
properties through a dark-scheme policy and keeps the document consistent as
it changes. Stylesheets can be rewritten too, including linked ones fetched
through the fetch proxy.

Preferences (thresholds, the blacklist, the active switch) live in a small
sqlite database managed with "umbra prefs". Runtime settings come from
config.toml and UMBRA_* environment variables.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/umbra/config.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().String("fetch-mode", "", "where stylesheets are fetched: direct or plugin (default: fetch.mode)")
	rootCmd.PersistentFlags().Bool("allow-private", false, "allow fetching from loopback and private addresses")

	// Set version template
	rootCmd.SetVersionTemplate(version.String() + "\n")

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDarkenCmd())
	rootCmd.AddCommand(newCSSCmd())
	rootCmd.AddCommand(newColorCmd())
	rootCmd.AddCommand(newPrefsCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Current())
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
