// Package config loads umbra's runtime configuration from an optional TOML
// file and UMBRA_* environment variables. Runtime configuration is separate
// from the user preferences kept in the preference store.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FetchMode selects where stylesheet fetches are performed.
type FetchMode string

const (
	// FetchModeDirect fetches in process.
	FetchModeDirect FetchMode = "direct"
	// FetchModePlugin fetches from a separate umbra-fetchd process.
	FetchModePlugin FetchMode = "plugin"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the runtime configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig locates the preference database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls the hclog root logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FetchConfig controls the stylesheet fetch proxy.
type FetchConfig struct {
	Mode         FetchMode     `mapstructure:"mode"`
	PluginPath   string        `mapstructure:"plugin_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	AllowPrivate bool          `mapstructure:"allow_private"`
	CacheDir     string        `mapstructure:"cache_dir"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// ReadinessConfig bounds the wait for a document body.
type ReadinessConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures `umbra serve`.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// DefaultConfig returns the built-in configuration. Database.Path is left
// empty and resolved against the XDG data directory at load time.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		Fetch: FetchConfig{
			Mode:     FetchModeDirect,
			Timeout:  10 * time.Second,
			MaxBytes: 5 << 20,
		},
		Readiness: ReadinessConfig{
			PollInterval: 100 * time.Millisecond,
			Timeout:      3 * time.Second,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Manager handles configuration loading.
type Manager struct {
	config *Config
	viper  *viper.Viper
}

// NewManager creates a configuration manager. When configFile is empty the
// manager looks for config.toml in the XDG config directory and the
// current directory; a missing file is not an error.
func NewManager(configFile string) (*Manager, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")

		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine config directory: %w", err)
		}
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	// UMBRA_FETCH_TIMEOUT overrides fetch.timeout, and so on.
	v.SetEnvPrefix("UMBRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "UMBRA_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind UMBRA_LOG_LEVEL: %w", err)
	}

	return &Manager{viper: v}, nil
}

// Load reads the configuration file and environment.
func (m *Manager) Load() error {
	m.setDefaults()

	if err := m.readConfigFile(); err != nil {
		return err
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to parse config file at %s: %w", m.viper.ConfigFileUsed(), err)
	}

	if config.Database.Path == "" {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
		config.Database.Path = dbPath
	}
	normalizeConfig(config)

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	return nil
}

// Get returns the loaded configuration, or the defaults before Load.
func (m *Manager) Get() *Config {
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// ConfigFileUsed returns the path of the file that was read, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// FlagBindings maps command-line flag names to the configuration keys they
// override. A bound flag only wins over the file and environment when it was
// set explicitly.
var FlagBindings = map[string]string{
	"listen":        "server.listen",
	"fetch-mode":    "fetch.mode",
	"allow-private": "fetch.allow_private",
}

// BindFlags binds every flag in flags that has an entry in FlagBindings.
// Call it before Load.
func (m *Manager) BindFlags(flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range FlagBindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := m.viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// Load is a convenience wrapper around NewManager and Manager.Load.
func Load(configFile string) (*Config, error) {
	return LoadWithFlags(configFile, nil)
}

// LoadWithFlags is Load with command-line overrides from flags.
func LoadWithFlags(configFile string, flags *pflag.FlagSet) (*Config, error) {
	mgr, err := NewManager(configFile)
	if err != nil {
		return nil, err
	}
	if err := mgr.BindFlags(flags); err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

func (m *Manager) readConfigFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file at %s: %w", m.viper.ConfigFileUsed(), err)
	}
	return nil
}

func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	// Registered so that UMBRA_DATABASE_PATH is seen by Unmarshal.
	m.viper.SetDefault("database.path", "")

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)

	m.viper.SetDefault("fetch.mode", string(defaults.Fetch.Mode))
	m.viper.SetDefault("fetch.plugin_path", defaults.Fetch.PluginPath)
	m.viper.SetDefault("fetch.timeout", defaults.Fetch.Timeout)
	m.viper.SetDefault("fetch.max_bytes", defaults.Fetch.MaxBytes)
	m.viper.SetDefault("fetch.allow_private", defaults.Fetch.AllowPrivate)
	m.viper.SetDefault("fetch.cache_dir", defaults.Fetch.CacheDir)
	m.viper.SetDefault("fetch.cache_ttl", defaults.Fetch.CacheTTL)

	m.viper.SetDefault("readiness.poll_interval", defaults.Readiness.PollInterval)
	m.viper.SetDefault("readiness.timeout", defaults.Readiness.Timeout)

	m.viper.SetDefault("server.listen", defaults.Server.Listen)
}

func normalizeConfig(config *Config) {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	config.Fetch.Mode = FetchMode(strings.ToLower(strings.TrimSpace(string(config.Fetch.Mode))))

	if config.Logging.Format == "" {
		config.Logging.Format = LogFormatText
	}
	if config.Fetch.Mode == "" {
		config.Fetch.Mode = FetchModeDirect
	}
}

func validateConfig(config *Config) error {
	var errs []string

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be %q or %q, got %q", LogFormatText, LogFormatJSON, config.Logging.Format))
	}

	switch config.Fetch.Mode {
	case FetchModeDirect, FetchModePlugin:
	default:
		errs = append(errs, fmt.Sprintf("fetch.mode must be %q or %q, got %q", FetchModeDirect, FetchModePlugin, config.Fetch.Mode))
	}

	if config.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}
	if config.Fetch.MaxBytes <= 0 {
		errs = append(errs, "fetch.max_bytes must be positive")
	}
	if config.Fetch.CacheTTL < 0 {
		errs = append(errs, "fetch.cache_ttl must not be negative")
	}
	if config.Readiness.PollInterval <= 0 {
		errs = append(errs, "readiness.poll_interval must be positive")
	}
	if config.Readiness.Timeout <= 0 {
		errs = append(errs, "readiness.timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
