// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// S3Config holds credentials for publishing to S3-compatible object storage.
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string // host[:port], without scheme
	Region   string
	URLStyle string // "path" (default) or "vhost"
}

// AzureConfig holds shared-key credentials for Azure Blob Storage.
type AzureConfig struct {
	AccountName string
	AccountKey  string
}

// Config holds the merge tool configuration.
type Config struct {
	BaseDir        string   // project root containing 1_datasets/ (default ".")
	LedgerPath     string   // path to the SQLite run ledger
	LedgerEnabled  bool     // record runs in the ledger (default true)
	LogLevel       string   // log level: debug, info, warn, error (default "info")
	LogFormat      string   // "text", "json", or "" to pick by terminal
	MetricsFile    string   // Prometheus textfile output (optional)
	PublishTargets []string // destinations the merged file is copied to
	Schedule       string   // cron expression for `schedule` (optional)

	// Storage credentials are nil when not configured.
	S3         *S3Config
	Azure      *AzureConfig
	GCSKeyFile string // service account JSON; empty uses application default credentials

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to an slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasS3Config returns true if S3 credentials are set.
func (c *Config) HasS3Config() bool {
	return c.S3 != nil
}

// HasAzureConfig returns true if Azure credentials are set.
func (c *Config) HasAzureConfig() bool {
	return c.Azure != nil
}

// LoadFromEnv loads configuration from environment variables.
// Storage credentials are optional.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		BaseDir:       os.Getenv("PHISHMERGE_BASE_DIR"),
		LedgerPath:    os.Getenv("LEDGER_DB_PATH"),
		LedgerEnabled: parseBoolEnvDefault("LEDGER_ENABLED", true),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LogFormat:     strings.ToLower(os.Getenv("LOG_FORMAT")),
		MetricsFile:   os.Getenv("METRICS_FILE"),
		Schedule:      os.Getenv("MERGE_SCHEDULE"),
		GCSKeyFile:    os.Getenv("GCS_KEY_FILE"),
	}

	if v := os.Getenv("PUBLISH_TARGETS"); v != "" {
		cfg.PublishTargets = splitList(v)
	}

	// S3 credentials are all-or-nothing
	s3 := S3Config{
		KeyID:    os.Getenv("KEY_ID"),
		Secret:   os.Getenv("SECRET"),
		Endpoint: os.Getenv("ENDPOINT"),
		Region:   os.Getenv("REGION"),
		URLStyle: os.Getenv("S3_URL_STYLE"),
	}
	switch {
	case s3.KeyID != "" && s3.Secret != "" && s3.Endpoint != "" && s3.Region != "":
		if s3.URLStyle == "" {
			s3.URLStyle = "path"
		}
		cfg.S3 = &s3
	case s3.KeyID != "" || s3.Secret != "" || s3.Endpoint != "":
		cfg.Warnings = append(cfg.Warnings, "incomplete S3 config: KEY_ID, SECRET, ENDPOINT and REGION must all be set")
	}

	if name, key := os.Getenv("AZURE_STORAGE_ACCOUNT"), os.Getenv("AZURE_STORAGE_KEY"); name != "" && key != "" {
		cfg.Azure = &AzureConfig{AccountName: name, AccountKey: key}
	} else if name != "" || key != "" {
		cfg.Warnings = append(cfg.Warnings, "incomplete Azure config: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must both be set")
	}

	// Defaults
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "phishmerge_ledger.sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}
	if cfg.S3 != nil && cfg.S3.URLStyle != "path" && cfg.S3.URLStyle != "vhost" {
		return nil, fmt.Errorf("S3_URL_STYLE must be \"path\" or \"vhost\", got %q", cfg.S3.URLStyle)
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
