package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/umbra/internal/config"
	"github.com/jmylchreest/umbra/internal/engine"
	"github.com/jmylchreest/umbra/internal/fetchproxy"
	"github.com/jmylchreest/umbra/internal/logging"
	"github.com/jmylchreest/umbra/internal/page"
	"github.com/jmylchreest/umbra/internal/prefs"
)

// FetchDaemonName is the file name of the out-of-process fetch proxy.
const FetchDaemonName = "umbra-fetchd"

// env is what every command needs: configuration and a logger.
type env struct {
	cfg        *config.Config
	configFile string
	logger     hclog.Logger
}

// setup loads configuration and builds the logger from the global flags.
func setup(cmd *cobra.Command) (*env, error) {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := config.LoadWithFlags(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  logging.Verbosity(cfg.Logging.Level, verbose, quiet),
		JSON:   cfg.Logging.Format == config.LogFormatJSON,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	return &env{cfg: cfg, configFile: configFile, logger: logger}, nil
}

// openStore opens the preference database.
func (e *env) openStore(ctx context.Context) (*prefs.SQLiteStore, error) {
	store, err := prefs.OpenSQLite(ctx, e.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences at %s: %w", e.cfg.Database.Path, err)
	}
	return store, nil
}

// loadPrefs reads the preferences once.
func (e *env) loadPrefs(ctx context.Context) (prefs.Preferences, error) {
	store, err := e.openStore(ctx)
	if err != nil {
		return prefs.Preferences{}, err
	}
	defer store.Close()
	return prefs.Load(ctx, store, e.logger.Named("prefs"))
}

// newFetcher builds the stylesheet fetcher selected by fetch.mode. The
// returned close function must be called when done.
func (e *env) newFetcher() (engine.Fetcher, func(), error) {
	switch e.cfg.Fetch.Mode {
	case config.FetchModePlugin:
		path, err := resolveDaemonPath(e.cfg.Fetch.PluginPath)
		if err != nil {
			return nil, nil, err
		}
		e.logger.Debug("launching fetch daemon", "path", path)
		var daemonEnv []string
		if e.configFile != "" {
			daemonEnv = append(daemonEnv, "UMBRA_CONFIG="+e.configFile)
		}
		remote, err := fetchproxy.Launch(path, daemonEnv, e.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch fetch daemon: %w", err)
		}
		return remote, remote.Close, nil
	default:
		bg, err := fetchproxy.FromConfig(e.cfg, e.logger.Named("fetch"))
		if err != nil {
			return nil, nil, err
		}
		return fetchproxy.Direct{Handler: bg}, func() {}, nil
	}
}

// pageOptions returns the page pipeline options for p and f.
func (e *env) pageOptions(p prefs.Preferences, f engine.Fetcher) page.Options {
	return page.Options{
		Prefs:        p,
		Fetcher:      f,
		Logger:       e.logger,
		PollInterval: e.cfg.Readiness.PollInterval,
		ReadyTimeout: e.cfg.Readiness.Timeout,
		MaxBytes:     e.cfg.Fetch.MaxBytes,
		FetchTimeout: e.cfg.Fetch.Timeout,
		AllowPrivate: e.cfg.Fetch.AllowPrivate,
	}
}

// resolveDaemonPath finds umbra-fetchd: the configured path, next to the
// running executable, or on $PATH.
func resolveDaemonPath(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("fetch daemon %s: %w", configured, err)
		}
		return configured, nil
	}

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), FetchDaemonName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(FetchDaemonName)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found; set fetch.plugin_path or use fetch.mode = \"direct\"", FetchDaemonName)
		}
		return "", err
	}
	return path, nil
}
