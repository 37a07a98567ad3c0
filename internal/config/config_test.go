package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, int64(DefaultMaxDocumentSize), cfg.Limits.MaxDocumentSize)
	assert.Equal(t, DefaultSearchLimit, cfg.Search.DefaultLimit)
	assert.True(t, cfg.Search.EnableCaching)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Search.SupportedExts)
	assert.Equal(t, 500, cfg.Watcher.DebounceDelayMs)
	assert.False(t, cfg.Watcher.BatchProcessing)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")
	t.Setenv(EnvPrefix+"MAX_SEARCH_RESULTS", "25")
	t.Setenv(EnvPrefix+"ENABLE_SEARCH_CACHING", "false")
	t.Setenv(EnvPrefix+"SUPPORTED_EXTENSIONS", "md, txt, markdown")
	t.Setenv(EnvPrefix+"DEBOUNCE_DELAY_MS", "250")

	cfg := Default()
	cfg.applyEnv()
	cfg.applyWatcherEnv()

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level normalizes to upper case")
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.False(t, cfg.Search.EnableCaching)
	assert.Equal(t, []string{".md", ".txt", ".markdown"}, cfg.Search.SupportedExts)
	assert.Equal(t, 250, cfg.Watcher.DebounceDelayMs)
}

func TestWatchDirsSplitOnPathListSeparator(t *testing.T) {
	dirs := "/docs/a" + string(os.PathListSeparator) + "/docs/b"
	t.Setenv(EnvPrefix+"WATCH_DIRS", dirs)

	cfg := Default()
	cfg.applyWatcherEnv()
	assert.Equal(t, []string{"/docs/a", "/docs/b"}, cfg.Watcher.Directories)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad transport", func(c *Config) { c.Transport = "http" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "LOUD" }},
		{"zero connections", func(c *Config) { c.Limits.MaxConnections = 0 }},
		{"negative timeout", func(c *Config) { c.Limits.RequestTimeoutSec = -1 }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = c.Search.MaxResults + 1 }},
		{"extension without dot", func(c *Config) { c.Search.SupportedExts = []string{"md"} }},
		{"zero debounce", func(c *Config) { c.Watcher.DebounceDelayMs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.DatabaseURL = "sqlite:///data/docs.db"

	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "docs.db", filepath.Base(path))

	cfg.Storage.DatabaseURL = "postgres://localhost/docs"
	_, err = cfg.DatabasePath()
	assert.Error(t, err)
}

func TestMergeTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "WARNING"

[search]
default_limit = 5
enable_caching = false

[watcher]
batch_processing = true
batch_delay_ms = 750
`), 0o644))

	cfg := Default()
	require.NoError(t, cfg.mergeTOML(path))

	assert.Equal(t, "WARNING", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Search.EnableCaching)
	assert.True(t, cfg.Watcher.BatchProcessing)
	assert.Equal(t, 750, cfg.Watcher.BatchDelayMs)
	assert.Equal(t, "stdio", cfg.Transport, "unset fields keep defaults")
}

func TestNormalizeExtensions(t *testing.T) {
	assert.Equal(t, []string{".md", ".txt"}, normalizeExtensions([]string{"md", ".TXT"}))
}
