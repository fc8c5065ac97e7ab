package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestSetDefaults(t *testing.T) {
	mgr := &Manager{viper: viper.New()}
	mgr.setDefaults()

	assert.Equal(t, "info", mgr.viper.GetString("logging.level"))
	assert.Equal(t, "text", mgr.viper.GetString("logging.format"))
	assert.Equal(t, "direct", mgr.viper.GetString("fetch.mode"))
	assert.Equal(t, 10*time.Second, mgr.viper.GetDuration("fetch.timeout"))
	assert.Equal(t, int64(5<<20), mgr.viper.GetInt64("fetch.max_bytes"))
	assert.False(t, mgr.viper.GetBool("fetch.allow_private"))
	assert.Zero(t, mgr.viper.GetDuration("fetch.cache_ttl"))
	assert.Equal(t, 100*time.Millisecond, mgr.viper.GetDuration("readiness.poll_interval"))
	assert.Equal(t, 3*time.Second, mgr.viper.GetDuration("readiness.timeout"))
	assert.Equal(t, ":8080", mgr.viper.GetString("server.listen"))
}

func TestLoadWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "umbra", "umbra.db"), cfg.Database.Path)
	assert.Equal(t, FetchModeDirect, cfg.Fetch.Mode)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "umbra.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/tmp/prefs.db"

[logging]
level = "DEBUG"
format = "json"

[fetch]
mode = "plugin"
plugin_path = "/usr/libexec/umbra-fetchd"
timeout = "2s"
cache_ttl = "1h"

[readiness]
poll_interval = "50ms"
`), 0o600))

	mgr, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, mgr.Load())
	cfg := mgr.Get()

	assert.Equal(t, path, mgr.ConfigFileUsed())
	assert.Equal(t, "/tmp/prefs.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, FetchModePlugin, cfg.Fetch.Mode)
	assert.Equal(t, "/usr/libexec/umbra-fetchd", cfg.Fetch.PluginPath)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, time.Hour, cfg.Fetch.CacheTTL)
	assert.Equal(t, 50*time.Millisecond, cfg.Readiness.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Readiness.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("UMBRA_FETCH_TIMEOUT", "4s")
	t.Setenv("UMBRA_FETCH_ALLOW_PRIVATE", "true")
	t.Setenv("UMBRA_DATABASE_PATH", "/var/lib/umbra.db")
	t.Setenv("UMBRA_LOG_LEVEL", "warn")
	t.Setenv("UMBRA_SERVER_LISTEN", "127.0.0.1:9000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Fetch.Timeout)
	assert.True(t, cfg.Fetch.AllowPrivate)
	assert.Equal(t, "/var/lib/umbra.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{"fetch mode", "UMBRA_FETCH_MODE", "carrier-pigeon", "fetch.mode"},
		{"log format", "UMBRA_LOGGING_FORMAT", "xml", "logging.format"},
		{"timeout", "UMBRA_FETCH_TIMEOUT", "0s", "fetch.timeout"},
		{"poll interval", "UMBRA_READINESS_POLL_INTERVAL", "-1s", "readiness.poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.env, tt.val)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestGetBeforeLoad(t *testing.T) {
	mgr := &Manager{viper: viper.New()}
	assert.Equal(t, DefaultConfig(), mgr.Get())
}

func TestLoadWithFlags(t *testing.T) {
	isolate(t)
	t.Setenv("UMBRA_SERVER_LISTEN", "127.0.0.1:9000")

	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("listen", "", "")
		flags.String("fetch-mode", "", "")
		flags.Bool("allow-private", false, "")
		return flags
	}

	// Unset flags leave the environment and defaults alone.
	cfg, err := LoadWithFlags("", newFlags())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, FetchModeDirect, cfg.Fetch.Mode)
	assert.False(t, cfg.Fetch.AllowPrivate)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--listen", ":9090", "--fetch-mode", "plugin", "--allow-private"}))
	cfg, err = LoadWithFlags("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, FetchModePlugin, cfg.Fetch.Mode)
	assert.True(t, cfg.Fetch.AllowPrivate)

	flags = newFlags()
	require.NoError(t, flags.Parse([]string{"--fetch-mode", "carrier-pigeon"}))
	_, err = LoadWithFlags("", flags)
	assert.Error(t, err)
}
