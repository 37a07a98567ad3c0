package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the optional project-local configuration file.
const ConfigFileName = "mydocs.toml"

// tomlConfig mirrors Config with pointer fields so absent keys leave the
// current value untouched.
type tomlConfig struct {
	Transport *string      `toml:"transport"`
	Debug     *bool        `toml:"debug"`
	Logging   *tomlLogging `toml:"logging"`
	Limits    *tomlLimits  `toml:"limits"`
	Storage   *tomlStorage `toml:"storage"`
	Search    *tomlSearch  `toml:"search"`
	Watcher   *tomlWatcher `toml:"watcher"`
}

type tomlLogging struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

type tomlLimits struct {
	MaxConnections  *int     `toml:"max_connections"`
	RequestTimeout  *float64 `toml:"request_timeout_sec"`
	ResponseTimeout *float64 `toml:"response_timeout_sec"`
	MaxDocumentSize *int64   `toml:"max_document_size"`
}

type tomlStorage struct {
	DatabaseURL  *string `toml:"database_url"`
	DocumentRoot *string `toml:"document_root"`
	CacheDir     *string `toml:"cache_dir"`
}

type tomlSearch struct {
	MaxResults    *int     `toml:"max_results"`
	DefaultLimit  *int     `toml:"default_limit"`
	EnableCaching *bool    `toml:"enable_caching"`
	CacheTTLSec   *int     `toml:"cache_ttl_sec"`
	SupportedExts []string `toml:"supported_extensions"`
}

type tomlWatcher struct {
	Directories     []string `toml:"directories"`
	Extensions      []string `toml:"extensions"`
	IgnorePatterns  []string `toml:"ignore_patterns"`
	DebounceDelayMs *int     `toml:"debounce_delay_ms"`
	BatchProcessing *bool    `toml:"batch_processing"`
	BatchDelayMs    *int     `toml:"batch_delay_ms"`
	Recursive       *bool    `toml:"recursive"`
	MaxFileSizeMB   *int     `toml:"max_file_size_mb"`
}

func findConfigFile() string {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	return ""
}

// mergeTOML overlays settings from a TOML file onto the config.
func (c *Config) mergeTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tc tomlConfig
	if err := toml.Unmarshal(data, &tc); err != nil {
		return err
	}

	setStr(&c.Transport, tc.Transport)
	setBool(&c.Debug, tc.Debug)

	if tc.Logging != nil {
		setStr(&c.Logging.Level, tc.Logging.Level)
		setStr(&c.Logging.File, tc.Logging.File)
	}
	if tc.Limits != nil {
		setInt(&c.Limits.MaxConnections, tc.Limits.MaxConnections)
		setFloat(&c.Limits.RequestTimeoutSec, tc.Limits.RequestTimeout)
		setFloat(&c.Limits.ResponseTimeoutSec, tc.Limits.ResponseTimeout)
		setInt64(&c.Limits.MaxDocumentSize, tc.Limits.MaxDocumentSize)
	}
	if tc.Storage != nil {
		setStr(&c.Storage.DatabaseURL, tc.Storage.DatabaseURL)
		setStr(&c.Storage.DocumentRoot, tc.Storage.DocumentRoot)
		setStr(&c.Storage.CacheDir, tc.Storage.CacheDir)
	}
	if tc.Search != nil {
		setInt(&c.Search.MaxResults, tc.Search.MaxResults)
		setInt(&c.Search.DefaultLimit, tc.Search.DefaultLimit)
		setBool(&c.Search.EnableCaching, tc.Search.EnableCaching)
		setInt(&c.Search.CacheTTLSec, tc.Search.CacheTTLSec)
		if len(tc.Search.SupportedExts) > 0 {
			c.Search.SupportedExts = normalizeExtensions(tc.Search.SupportedExts)
		}
	}
	if tc.Watcher != nil {
		if len(tc.Watcher.Directories) > 0 {
			c.Watcher.Directories = tc.Watcher.Directories
		}
		if len(tc.Watcher.Extensions) > 0 {
			c.Watcher.Extensions = normalizeExtensions(tc.Watcher.Extensions)
		}
		if len(tc.Watcher.IgnorePatterns) > 0 {
			c.Watcher.IgnorePatterns = tc.Watcher.IgnorePatterns
		}
		setInt(&c.Watcher.DebounceDelayMs, tc.Watcher.DebounceDelayMs)
		setBool(&c.Watcher.BatchProcessing, tc.Watcher.BatchProcessing)
		setInt(&c.Watcher.BatchDelayMs, tc.Watcher.BatchDelayMs)
		setBool(&c.Watcher.Recursive, tc.Watcher.Recursive)
		setInt(&c.Watcher.MaxFileSizeMB, tc.Watcher.MaxFileSizeMB)
	}
	return nil
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
