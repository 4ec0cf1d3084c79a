// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Blob store kinds.
const (
	BlobNone  = "none"
	BlobFS    = "fs"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// BlobStoreConfig selects where uploaded sources are persisted.
type BlobStoreConfig struct {
	Kind   string `yaml:"kind"`   // none (default), fs, s3, gcs, azure
	Prefix string `yaml:"prefix"` // key prefix inside the bucket/container/directory
	Dir    string `yaml:"dir"`    // fs root directory

	// S3 or an S3-compatible service.
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3KeyID    string `yaml:"s3_key_id"`
	S3Secret   string `yaml:"s3_secret"`

	GCSBucket          string `yaml:"gcs_bucket"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`
	GCSEndpoint        string `yaml:"gcs_endpoint"`

	AzureAccountName string `yaml:"azure_account_name"`
	AzureAccountKey  string `yaml:"azure_account_key"`
	AzureContainer   string `yaml:"azure_container"`
	AzureServiceURL  string `yaml:"azure_service_url"`
}

// Validate checks that the selected backend has what it needs.
func (b *BlobStoreConfig) Validate() error {
	switch b.Kind {
	case BlobNone:
		return nil
	case BlobFS:
		if b.Dir == "" {
			return errors.New("BLOB_DIR is required when BLOB_STORE=fs")
		}
	case BlobS3:
		if b.S3Bucket == "" {
			return errors.New("BUCKET is required when BLOB_STORE=s3")
		}
		if (b.S3KeyID == "") != (b.S3Secret == "") {
			return errors.New("KEY_ID and SECRET must be set together")
		}
	case BlobGCS:
		if b.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when BLOB_STORE=gcs")
		}
	case BlobAzure:
		if b.AzureContainer == "" || b.AzureAccountName == "" || b.AzureAccountKey == "" {
			return errors.New("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required when BLOB_STORE=azure")
		}
	default:
		return fmt.Errorf("invalid BLOB_STORE %q: must be one of none, fs, s3, gcs, azure", b.Kind)
	}
	return nil
}

// TextGenConfig configures the natural-language-to-SQL service.
type TextGenConfig struct {
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Endpoint       string        `yaml:"endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`   // sustained requests per second (default 1)
	RateLimitBurst int           `yaml:"rate_limit_burst"` // burst capacity (default 3)
}

// Enabled reports whether an API key is configured.
func (t *TextGenConfig) Enabled() bool {
	return t.APIKey != ""
}

// Config holds the configuration of a unification session.
type Config struct {
	Engine          string `yaml:"engine"`           // sqlite (default) or duckdb
	CollisionPolicy string `yaml:"collision_policy"` // skip (default), error, rename
	SpoolDir        string `yaml:"spool_dir"`        // where source images are spooled (default: OS temp dir)
	HistoryDBPath   string `yaml:"history_db_path"`  // SQLite history file; empty keeps history in memory
	ExportTableName string `yaml:"export_table_name"`
	LogLevel        string `yaml:"log_level"`  // debug, info, warn, error (default "info")
	LogFormat       string `yaml:"log_format"` // text (default) or json
	SeqURL          string `yaml:"seq_url"`    // optional Seq ingestion endpoint

	BlobStore BlobStoreConfig `yaml:"blob_store"`
	TextGen   TextGenConfig   `yaml:"text_generation"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load reads the YAML file at path, if any, then applies environment
// variables on top. Environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Engine, "ENGINE")
	setString(&cfg.CollisionPolicy, "COLLISION_POLICY")
	setString(&cfg.SpoolDir, "SPOOL_DIR")
	setString(&cfg.HistoryDBPath, "HISTORY_DB_PATH")
	setString(&cfg.ExportTableName, "EXPORT_TABLE_NAME")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.SeqURL, "SEQ_URL")

	b := &cfg.BlobStore
	setString(&b.Kind, "BLOB_STORE")
	setString(&b.Prefix, "BLOB_PREFIX")
	setString(&b.Dir, "BLOB_DIR")
	setString(&b.S3KeyID, "KEY_ID")
	setString(&b.S3Secret, "SECRET")
	setString(&b.S3Endpoint, "ENDPOINT")
	setString(&b.S3Region, "REGION")
	setString(&b.S3Bucket, "BUCKET")
	setString(&b.GCSBucket, "GCS_BUCKET")
	setString(&b.GCSCredentialsFile, "GCS_CREDENTIALS_FILE")
	setString(&b.GCSEndpoint, "GCS_ENDPOINT")
	setString(&b.AzureAccountName, "AZURE_ACCOUNT_NAME")
	setString(&b.AzureAccountKey, "AZURE_ACCOUNT_KEY")
	setString(&b.AzureContainer, "AZURE_CONTAINER")
	setString(&b.AzureServiceURL, "AZURE_SERVICE_URL")

	tg := &cfg.TextGen
	setString(&tg.APIKey, "OPENROUTER_API_KEY")
	setString(&tg.Model, "TEXTGEN_MODEL")
	setString(&tg.Endpoint, "TEXTGEN_ENDPOINT")
	if v := os.Getenv("TEXTGEN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			tg.Timeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid TEXTGEN_TIMEOUT %q", v))
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			tg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			tg.RateLimitBurst = n
		}
	}
}

// finalize applies defaults, normalizes enum values and validates.
func (c *Config) finalize() error {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if c.Engine == "" {
		c.Engine = "sqlite"
	}
	if c.Engine != "sqlite" && c.Engine != "duckdb" {
		return fmt.Errorf("invalid ENGINE %q: must be one of sqlite, duckdb", c.Engine)
	}

	c.CollisionPolicy = strings.ToLower(strings.TrimSpace(c.CollisionPolicy))
	if c.CollisionPolicy == "" {
		c.CollisionPolicy = "skip"
	}
	switch c.CollisionPolicy {
	case "skip", "error", "rename":
	default:
		return fmt.Errorf("invalid COLLISION_POLICY %q: must be one of skip, error, rename", c.CollisionPolicy)
	}

	if c.ExportTableName == "" {
		c.ExportTableName = "query_results"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", c.LogFormat)
	}

	c.BlobStore.Kind = strings.ToLower(strings.TrimSpace(c.BlobStore.Kind))
	if c.BlobStore.Kind == "" {
		c.BlobStore.Kind = BlobNone
	}
	if err := c.BlobStore.Validate(); err != nil {
		return err
	}
	if c.BlobStore.Kind == BlobNone {
		c.Warnings = append(c.Warnings, "BLOB_STORE not set: uploaded sources are not persisted between sessions")
	}

	tg := &c.TextGen
	if tg.Model == "" {
		tg.Model = "mistralai/devstral-small:free"
	}
	if tg.Endpoint == "" {
		tg.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}
	if tg.Timeout == 0 {
		tg.Timeout = 60 * time.Second
	}
	if tg.RateLimitRPS == 0 {
		tg.RateLimitRPS = 1
	}
	if tg.RateLimitBurst == 0 {
		tg.RateLimitBurst = 3
	}
	if !tg.Enabled() {
		c.Warnings = append(c.Warnings, "OPENROUTER_API_KEY not set: natural-language queries are disabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
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
		// Env vars take precedence.
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
