package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix for all server environment variables.
const EnvPrefix = "MYDOCS_MCP_"

// Default limits shared between config parsing and tool handlers.
const (
	DefaultMaxDocumentSize = 10 * 1024 * 1024
	DefaultRequestTimeout  = 30.0
	DefaultSearchCacheTTL  = 1800
	DefaultSearchLimit     = 10
	MaxSearchResults       = 100
)

// Config holds every tunable of the server. Loaded in order, later wins:
// defaults, .env file, MYDOCS_MCP_* environment, optional TOML file, CLI flags.
type Config struct {
	Transport string
	Logging   Logging
	Limits    Limits
	Storage   Storage
	Search    Search
	Watcher   Watcher
	Debug     bool
}

type Logging struct {
	Level string
	File  string
}

type Limits struct {
	MaxConnections     int
	RequestTimeoutSec  float64
	ResponseTimeoutSec float64
	MaxDocumentSize    int64
}

type Storage struct {
	DatabaseURL  string
	DocumentRoot string
	CacheDir     string
}

type Search struct {
	MaxResults    int
	DefaultLimit  int
	EnableCaching bool
	CacheTTLSec   int
	SupportedExts []string
}

// Watcher controls the filesystem monitor. BatchProcessing selects batched
// coalescing over per-path debouncing.
type Watcher struct {
	Directories     []string
	Extensions      []string
	IgnorePatterns  []string
	DebounceDelayMs int
	BatchProcessing bool
	BatchDelayMs    int
	Recursive       bool
	MaxFileSizeMB   int
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Transport: "stdio",
		Logging: Logging{
			Level: "INFO",
		},
		Limits: Limits{
			MaxConnections:     10,
			RequestTimeoutSec:  DefaultRequestTimeout,
			ResponseTimeoutSec: DefaultRequestTimeout,
			MaxDocumentSize:    DefaultMaxDocumentSize,
		},
		Storage: Storage{
			DatabaseURL:  "sqlite:///data/mydocs.db",
			DocumentRoot: "./data/documents",
			CacheDir:     "./data/cache",
		},
		Search: Search{
			MaxResults:    50,
			DefaultLimit:  DefaultSearchLimit,
			EnableCaching: true,
			CacheTTLSec:   DefaultSearchCacheTTL,
			SupportedExts: []string{".md", ".txt"},
		},
		Watcher: Watcher{
			Extensions: []string{".md", ".txt"},
			IgnorePatterns: []string{
				"*.tmp", "*.swp", "*~", ".DS_Store", "Thumbs.db",
				"**/.git/**", "**/.svn/**", "**/.hg/**", "**/node_modules/**",
			},
			DebounceDelayMs: 500,
			BatchProcessing: false,
			BatchDelayMs:    1000,
			Recursive:       true,
			MaxFileSizeMB:   10,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, the
// MYDOCS_MCP_* environment, and an optional mydocs.toml in the working
// directory. CLI flag overrides are applied afterwards by the caller.
func Load() (*Config, error) {
	// .env is best-effort; a missing file is not an error
	_ = godotenv.Load()

	cfg := Default()
	cfg.applyEnv()
	cfg.applyWatcherEnv()

	if path := findConfigFile(); path != "" {
		if err := cfg.mergeTOML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := envStr("TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := envStr("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToUpper(v)
	}
	if v := envStr("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v, ok := envInt("MAX_CONNECTIONS"); ok {
		c.Limits.MaxConnections = v
	}
	if v, ok := envFloat("REQUEST_TIMEOUT"); ok {
		c.Limits.RequestTimeoutSec = v
	}
	if v, ok := envFloat("RESPONSE_TIMEOUT"); ok {
		c.Limits.ResponseTimeoutSec = v
	}
	if v := envStr("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := envStr("DOCUMENT_ROOT"); v != "" {
		c.Storage.DocumentRoot = v
	}
	if v := envStr("CACHE_DIRECTORY"); v != "" {
		c.Storage.CacheDir = v
	}
	if v, ok := envInt("MAX_DOCUMENT_SIZE"); ok {
		c.Limits.MaxDocumentSize = int64(v)
	}
	if v := envStr("SUPPORTED_EXTENSIONS"); v != "" {
		c.Search.SupportedExts = normalizeExtensions(splitList(v, ","))
	}
	if v, ok := envInt("MAX_SEARCH_RESULTS"); ok {
		c.Search.MaxResults = v
	}
	if v, ok := envInt("DEFAULT_SEARCH_LIMIT"); ok {
		c.Search.DefaultLimit = v
	}
	if v := envStr("ENABLE_SEARCH_CACHING"); v != "" {
		c.Search.EnableCaching = envBool(v)
	}
	if v, ok := envInt("SEARCH_CACHE_TTL"); ok {
		c.Search.CacheTTLSec = v
	}
	if v := envStr("DEBUG"); v != "" {
		c.Debug = envBool(v)
	}
}

func (c *Config) applyWatcherEnv() {
	if v := envStr("WATCH_DIRS"); v != "" {
		c.Watcher.Directories = splitList(v, string(os.PathListSeparator))
	}
	if v := envStr("WATCH_EXTENSIONS"); v != "" {
		c.Watcher.Extensions = normalizeExtensions(splitList(v, ","))
	}
	if v, ok := envInt("DEBOUNCE_DELAY_MS"); ok {
		c.Watcher.DebounceDelayMs = v
	}
	if v := envStr("RECURSIVE_WATCH"); v != "" {
		c.Watcher.Recursive = envBool(v)
	}
	if v, ok := envInt("MAX_FILE_SIZE_MB"); ok {
		c.Watcher.MaxFileSizeMB = v
	}
	if v := envStr("BATCH_PROCESSING"); v != "" {
		c.Watcher.BatchProcessing = envBool(v)
	}
	if v, ok := envInt("BATCH_DELAY_MS"); ok {
		c.Watcher.BatchDelayMs = v
	}
}

// Validate checks every setting and returns the first violation found.
func (c *Config) Validate() error {
	switch c.Transport {
	case "stdio":
	default:
		return fmt.Errorf("invalid transport: %s", c.Transport)
	}

	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Limits.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", c.Limits.MaxConnections)
	}
	if c.Limits.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.Limits.RequestTimeoutSec)
	}
	if c.Limits.ResponseTimeoutSec <= 0 {
		return fmt.Errorf("response timeout must be positive, got %v", c.Limits.ResponseTimeoutSec)
	}
	if c.Limits.MaxDocumentSize <= 0 {
		return fmt.Errorf("max document size must be positive, got %d", c.Limits.MaxDocumentSize)
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxResults > MaxSearchResults {
		return fmt.Errorf("max search results must be in 1..%d, got %d", MaxSearchResults, c.Search.MaxResults)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("default search limit must be in 1..%d, got %d", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Search.CacheTTLSec < 0 {
		return fmt.Errorf("search cache TTL must be non-negative, got %d", c.Search.CacheTTLSec)
	}
	for _, ext := range c.Search.SupportedExts {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("file extension must start with dot: %s", ext)
		}
	}
	if c.Watcher.DebounceDelayMs <= 0 {
		return fmt.Errorf("debounce delay must be positive, got %d", c.Watcher.DebounceDelayMs)
	}
	if c.Watcher.BatchDelayMs <= 0 {
		return fmt.Errorf("batch delay must be positive, got %d", c.Watcher.BatchDelayMs)
	}
	if c.Watcher.MaxFileSizeMB <= 0 {
		return fmt.Errorf("watcher max file size must be positive, got %d", c.Watcher.MaxFileSizeMB)
	}
	return nil
}

// DatabasePath resolves the sqlite:/// URL to a filesystem path.
func (c *Config) DatabasePath() (string, error) {
	const prefix = "sqlite:///"
	if !strings.HasPrefix(c.Storage.DatabaseURL, prefix) {
		return "", fmt.Errorf("unsupported database URL format: %s", c.Storage.DatabaseURL)
	}
	abs, err := filepath.Abs(strings.TrimPrefix(c.Storage.DatabaseURL, prefix))
	if err != nil {
		return "", err
	}
	return abs, nil
}

// EnsureDirectories creates the data directories the server writes into.
func (c *Config) EnsureDirectories() error {
	dbPath, err := c.DatabasePath()
	if err != nil {
		return err
	}
	dirs := []string{filepath.Dir(dbPath), c.Storage.DocumentRoot, c.Storage.CacheDir}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func envStr(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func envInt(key string) (int, bool) {
	v := envStr(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := envStr(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
