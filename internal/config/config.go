// Package config provides configuration management for paperhub.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/helixir/paperhub/internal/observability"
)

// EnvPrefix prefixes every environment variable paperhub reads.
const EnvPrefix = "PAPERHUB"

// Built-in plugin IDs that can be configured.
const (
	PluginADS     = "ads"
	PluginArXiv   = "arxiv"
	PluginInspire = "inspire"
)

// Config holds all configuration for paperhub.
type Config struct {
	// Server contains REST API server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Plugins contains source plugin settings.
	Plugins PluginsConfig `mapstructure:"plugins"`
	// Credentials locates the credential store.
	Credentials CredentialsConfig `mapstructure:"credentials"`
	// Library locates the local paper library.
	Library LibraryConfig `mapstructure:"library"`
	// PDF contains PDF download settings.
	PDF PDFConfig `mapstructure:"pdf"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 127.0.0.1).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response.
	// Federated searches against slow sources need a generous value.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// Observability converts the section into the logger's configuration.
func (c LoggingConfig) Observability() observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		AddSource:  c.AddSource,
		TimeFormat: c.TimeFormat,
	}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled exposes metrics on the API server.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// PluginsConfig holds settings shared by the plugin manager and each
// built-in plugin.
type PluginsConfig struct {
	// Active names the plugin made active at startup. Empty keeps the first
	// registered plugin.
	Active string `mapstructure:"active"`
	// DefaultDelay is the minimum inter-request delay for plugins without
	// their own min_delay.
	DefaultDelay time.Duration `mapstructure:"default_delay"`
	// UserAgent is sent with every plugin request.
	UserAgent string `mapstructure:"user_agent"`

	ADS     PluginConfig `mapstructure:"ads"`
	ArXiv   PluginConfig `mapstructure:"arxiv"`
	Inspire PluginConfig `mapstructure:"inspire"`
}

// PluginConfig holds configuration for a single source plugin.
type PluginConfig struct {
	// Enabled controls whether the plugin is registered.
	Enabled bool `mapstructure:"enabled"`
	// APIToken is loaded from the environment only, e.g. PAPERHUB_PLUGINS_ADS_API_TOKEN.
	APIToken string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds one API call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MinDelay is the minimum delay between two requests to the source.
	MinDelay time.Duration `mapstructure:"min_delay"`
	// MaxResults caps the page size of one search.
	MaxResults int `mapstructure:"max_results"`
}

// ByID returns the configuration of a built-in plugin.
func (c *PluginsConfig) ByID(id string) (PluginConfig, bool) {
	switch id {
	case PluginADS:
		return c.ADS, true
	case PluginArXiv:
		return c.ArXiv, true
	case PluginInspire:
		return c.Inspire, true
	default:
		return PluginConfig{}, false
	}
}

// Delays returns the configured per-plugin minimum delays.
func (c *PluginsConfig) Delays() map[string]time.Duration {
	delays := make(map[string]time.Duration, 3)
	for _, id := range []string{PluginADS, PluginArXiv, PluginInspire} {
		if pc, _ := c.ByID(id); pc.MinDelay > 0 {
			delays[id] = pc.MinDelay
		}
	}
	return delays
}

// CredentialsConfig holds credential store settings.
type CredentialsConfig struct {
	// Path is the bbolt file holding plugin tokens. Empty keeps tokens in memory.
	Path string `mapstructure:"path"`
}

// LibraryConfig holds local library settings.
type LibraryConfig struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
}

// PDFConfig holds PDF download settings.
type PDFConfig struct {
	// Timeout bounds one download.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize is the largest accepted PDF in bytes.
	MaxSize int64 `mapstructure:"max_size"`
	// OutputDir is where downloaded PDFs are written by the CLI.
	OutputDir string `mapstructure:"output_dir"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from .env, environment variables and the first
// config.yaml found in the search path.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// ".", "./config" and "$HOME/.config/paperhub" for config.yaml.
func LoadFile(path string) (*Config, error) {
	// A missing .env file is fine; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "paperhub"))
		}
		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Plugins.ADS.APIToken = os.Getenv(EnvPrefix + "_PLUGINS_ADS_API_TOKEN")
	cfg.Plugins.ArXiv.APIToken = os.Getenv(EnvPrefix + "_PLUGINS_ARXIV_API_TOKEN")
	cfg.Plugins.Inspire.APIToken = os.Getenv(EnvPrefix + "_PLUGINS_INSPIRE_API_TOKEN")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "paperhub")
	}
	return "data"
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	logging := observability.DefaultLoggingConfig()
	v.SetDefault("logging.level", logging.Level)
	v.SetDefault("logging.format", logging.Format)
	v.SetDefault("logging.output", logging.Output)
	v.SetDefault("logging.add_source", logging.AddSource)
	v.SetDefault("logging.time_format", logging.TimeFormat)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paperhub")

	v.SetDefault("plugins.active", PluginADS)
	v.SetDefault("plugins.default_delay", "1s")
	v.SetDefault("plugins.user_agent", "paperhub/1.0 (+https://github.com/helixir/paperhub)")

	// ADS allows 5000 requests a day per token.
	v.SetDefault("plugins.ads.enabled", true)
	v.SetDefault("plugins.ads.base_url", "https://api.adsabs.harvard.edu/v1")
	v.SetDefault("plugins.ads.timeout", "30s")
	v.SetDefault("plugins.ads.min_delay", "100ms")
	v.SetDefault("plugins.ads.max_results", 2000)

	// arXiv asks clients to wait 3 seconds between calls.
	v.SetDefault("plugins.arxiv.enabled", true)
	v.SetDefault("plugins.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("plugins.arxiv.timeout", "30s")
	v.SetDefault("plugins.arxiv.min_delay", "3s")
	v.SetDefault("plugins.arxiv.max_results", 100)

	// INSPIRE allows 15 requests per 5 seconds.
	v.SetDefault("plugins.inspire.enabled", true)
	v.SetDefault("plugins.inspire.base_url", "https://inspirehep.net/api")
	v.SetDefault("plugins.inspire.timeout", "30s")
	v.SetDefault("plugins.inspire.min_delay", "350ms")
	v.SetDefault("plugins.inspire.max_results", 250)

	v.SetDefault("credentials.path", filepath.Join(dataDir, "credentials.db"))
	v.SetDefault("library.path", filepath.Join(dataDir, "library.db"))

	v.SetDefault("pdf.timeout", "60s")
	v.SetDefault("pdf.max_size", 100*1024*1024)
	v.SetDefault("pdf.output_dir", ".")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if !observability.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}

	if c.Plugins.DefaultDelay < 0 {
		return fmt.Errorf("plugins default_delay must not be negative")
	}
	for _, id := range []string{PluginADS, PluginArXiv, PluginInspire} {
		pc, _ := c.Plugins.ByID(id)
		if pc.MinDelay < 0 {
			return fmt.Errorf("plugin %s min_delay must not be negative", id)
		}
		if pc.Timeout < 0 {
			return fmt.Errorf("plugin %s timeout must not be negative", id)
		}
		if pc.MaxResults < 0 {
			return fmt.Errorf("plugin %s max_results must not be negative", id)
		}
	}

	if active := c.Plugins.Active; active != "" {
		pc, ok := c.Plugins.ByID(active)
		if !ok {
			return fmt.Errorf("unknown active plugin: %s", active)
		}
		if !pc.Enabled {
			return fmt.Errorf("active plugin %s is disabled", active)
		}
	}

	if c.Library.Path == "" {
		return fmt.Errorf("library path is required")
	}
	if c.PDF.MaxSize <= 0 {
		return fmt.Errorf("pdf max_size must be positive")
	}

	return nil
}
