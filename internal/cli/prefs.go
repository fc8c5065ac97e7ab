package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/umbra/internal/prefs"
)

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and change preferences",
		Long: `Show and change the preferences stored in the preferences database.

Preferences are read once when a page is darkened, so a change applies to the
next page, never to one already being processed.

Keys:
  isActive              enable darkening (true|false)
  colorThreshold        channel spread below which a colour is grayscale (0-255)
  colorGoalThreshold    r+g+b boundary between light and dark (0-765)
  luminanceThreshold    luminance boundary for chromatic colours (0-1)
  imageBrightness       brightness applied to images (0-1, 1 disables)
  blacklist             comma-separated hostnames left untouched
  stylesheetParserMode  0 = element colours only, 1 = also rewrite stylesheets`,
	}

	cmd.AddCommand(newPrefsShowCmd())
	cmd.AddCommand(newPrefsSetCmd())
	cmd.AddCommand(newPrefsToggleCmd())
	cmd.AddCommand(newPrefsBlacklistCmd())
	return cmd
}

func newPrefsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			p, err := e.loadPrefs(commandContext(cmd))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			values := p.Values()
			t := NewTable("key", "value")
			for _, key := range prefs.Keys {
				t.AddRow(key, values[key])
			}
			return t.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newPrefsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if key == prefs.KeyBlacklist {
				value = prefs.FormatBlacklist(prefs.ParseBlacklist(value))
			}
			if err := prefs.Validate(key, value); err != nil {
				return err
			}
			return setPref(cmd, key, value)
		},
	}
}

func newPrefsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Flip isActive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := prefs.Load(ctx, store, e.logger.Named("prefs"))
			if err != nil {
				return err
			}
			next := strconv.FormatBool(!p.IsActive)
			if err := store.Set(ctx, prefs.KeyIsActive, next); err != nil {
				return fmt.Errorf("failed to save %s: %w", prefs.KeyIsActive, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", prefs.KeyIsActive, next)
			return nil
		},
	}
}

func newPrefsBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage hostnames that are never darkened",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <hostname>...",
		Short: "Add hostnames to the blacklist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateBlacklist(cmd, func(hosts []string) []string {
				return prefs.ParseBlacklist(prefs.FormatBlacklist(append(hosts, args...)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <hostname>...",
		Short: "Remove hostnames from the blacklist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drop := make(map[string]bool, len(args))
			for _, h := range args {
				drop[strings.ToLower(strings.TrimSpace(h))] = true
			}
			return updateBlacklist(cmd, func(hosts []string) []string {
				var kept []string
				for _, h := range hosts {
					if !drop[h] {
						kept = append(kept, h)
					}
				}
				return kept
			})
		},
	})

	return cmd
}

func updateBlacklist(cmd *cobra.Command, update func([]string) []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := prefs.Load(ctx, store, e.logger.Named("prefs"))
	if err != nil {
		return err
	}
	value := prefs.FormatBlacklist(update(p.Blacklist))
	if err := store.Set(ctx, prefs.KeyBlacklist, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", prefs.KeyBlacklist, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", prefs.KeyBlacklist, value)
	return nil
}

func setPref(cmd *cobra.Command, key, value string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	return nil
}
