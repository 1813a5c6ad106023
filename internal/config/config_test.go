package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "paperhub", cfg.Metrics.Namespace)

	assert.Equal(t, PluginADS, cfg.Plugins.Active)
	assert.Equal(t, time.Second, cfg.Plugins.DefaultDelay)
	assert.True(t, cfg.Plugins.ADS.Enabled)
	assert.Equal(t, "https://api.adsabs.harvard.edu/v1", cfg.Plugins.ADS.BaseURL)
	assert.Equal(t, 100*time.Millisecond, cfg.Plugins.ADS.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.Plugins.ArXiv.MinDelay)
	assert.Equal(t, 350*time.Millisecond, cfg.Plugins.Inspire.MinDelay)
	assert.Equal(t, 250, cfg.Plugins.Inspire.MaxResults)

	assert.True(t, strings.HasSuffix(cfg.Library.Path, "library.db"))
	assert.True(t, strings.HasSuffix(cfg.Credentials.Path, "credentials.db"))
	assert.Equal(t, int64(100*1024*1024), cfg.PDF.MaxSize)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	t.Setenv("PAPERHUB_SERVER_HTTP_PORT", "8888")
	t.Setenv("PAPERHUB_LOGGING_LEVEL", "debug")
	t.Setenv("PAPERHUB_PLUGINS_ACTIVE", "inspire")
	t.Setenv("PAPERHUB_PLUGINS_ARXIV_MIN_DELAY", "5s")
	t.Setenv("PAPERHUB_LIBRARY_PATH", "/tmp/papers.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, PluginInspire, cfg.Plugins.Active)
	assert.Equal(t, 5*time.Second, cfg.Plugins.ArXiv.MinDelay)
	assert.Equal(t, "/tmp/papers.db", cfg.Library.Path)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
plugins:
  active: arxiv
  ads:
    enabled: false
  arxiv:
    max_results: 50
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Run("found in working directory", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, PluginArXiv, cfg.Plugins.Active)
		assert.False(t, cfg.Plugins.ADS.Enabled)
		assert.Equal(t, 50, cfg.Plugins.ArXiv.MaxResults)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("explicit path", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join(dir, "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, PluginArXiv, cfg.Plugins.Active)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_TokenFromEnvOnly(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Chdir(dir)

	// A token in the file is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("plugins:\n  ads:\n    api_token: from-file\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Plugins.ADS.APIToken)

	t.Setenv("PAPERHUB_PLUGINS_ADS_API_TOKEN", "from-env")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Plugins.ADS.APIToken)
	assert.Empty(t, cfg.Plugins.Inspire.APIToken)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("PAPERHUB_PLUGINS_ADS_API_TOKEN") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PAPERHUB_PLUGINS_ADS_API_TOKEN=dotenv-token\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Plugins.ADS.APIToken)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name:        "zero port",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 0 },
			expectedErr: "invalid HTTP port",
		},
		{
			name:        "port too large",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 70000 },
			expectedErr: "invalid HTTP port",
		},
		{
			name:        "bad log level",
			modifyFunc:  func(c *Config) { c.Logging.Level = "loud" },
			expectedErr: "invalid log level",
		},
		{
			name:        "metrics path",
			modifyFunc:  func(c *Config) { c.Metrics.Path = "metrics" },
			expectedErr: "metrics path",
		},
		{
			name:        "negative default delay",
			modifyFunc:  func(c *Config) { c.Plugins.DefaultDelay = -time.Second },
			expectedErr: "default_delay",
		},
		{
			name:        "negative plugin delay",
			modifyFunc:  func(c *Config) { c.Plugins.ArXiv.MinDelay = -time.Second },
			expectedErr: "plugin arxiv min_delay",
		},
		{
			name:        "unknown active plugin",
			modifyFunc:  func(c *Config) { c.Plugins.Active = "scopus" },
			expectedErr: "unknown active plugin",
		},
		{
			name: "disabled active plugin",
			modifyFunc: func(c *Config) {
				c.Plugins.Active = PluginADS
				c.Plugins.ADS.Enabled = false
			},
			expectedErr: "is disabled",
		},
		{
			name:        "library path",
			modifyFunc:  func(c *Config) { c.Library.Path = "" },
			expectedErr: "library path",
		},
		{
			name:        "pdf size",
			modifyFunc:  func(c *Config) { c.PDF.MaxSize = 0 },
			expectedErr: "max_size",
		},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestPluginsConfig_Delays(t *testing.T) {
	cfg := validConfig()
	cfg.Plugins.Inspire.MinDelay = 0

	delays := cfg.Plugins.Delays()
	assert.Equal(t, map[string]time.Duration{
		PluginADS:   100 * time.Millisecond,
		PluginArXiv: 3 * time.Second,
	}, delays)

	_, ok := cfg.Plugins.ByID("scopus")
	assert.False(t, ok)
}

func TestServerConfig_HTTPAddress(t *testing.T) {
	cfg := ServerConfig{Host: "localhost", HTTPPort: 8080}
	assert.Equal(t, "localhost:8080", cfg.HTTPAddress())
}

func TestLoggingConfig_Observability(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}.Observability()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "stdout", lc.Output)
}

// clearEnvVars unsets every PAPERHUB_ variable for the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// validConfig returns a valid configuration for testing.
func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", HTTPPort: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Plugins: PluginsConfig{
			Active:       PluginADS,
			DefaultDelay: time.Second,
			ADS:          PluginConfig{Enabled: true, MinDelay: 100 * time.Millisecond},
			ArXiv:        PluginConfig{Enabled: true, MinDelay: 3 * time.Second},
			Inspire:      PluginConfig{Enabled: true, MinDelay: 350 * time.Millisecond},
		},
		Library: LibraryConfig{Path: "library.db"},
		PDF:     PDFConfig{MaxSize: 1024},
	}
}
