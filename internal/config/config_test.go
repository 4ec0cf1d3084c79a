package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadFromEnv reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENGINE", "COLLISION_POLICY", "SPOOL_DIR", "HISTORY_DB_PATH", "EXPORT_TABLE_NAME",
		"LOG_LEVEL", "LOG_FORMAT", "SEQ_URL",
		"BLOB_STORE", "BLOB_PREFIX", "BLOB_DIR", "KEY_ID", "SECRET", "ENDPOINT", "REGION", "BUCKET",
		"GCS_BUCKET", "GCS_CREDENTIALS_FILE", "GCS_ENDPOINT",
		"AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "AZURE_CONTAINER", "AZURE_SERVICE_URL",
		"OPENROUTER_API_KEY", "TEXTGEN_MODEL", "TEXTGEN_ENDPOINT", "TEXTGEN_TIMEOUT",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Engine)
	assert.Equal(t, "skip", cfg.CollisionPolicy)
	assert.Equal(t, "query_results", cfg.ExportTableName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.HistoryDBPath)
	assert.Equal(t, BlobNone, cfg.BlobStore.Kind)
	assert.Equal(t, "mistralai/devstral-small:free", cfg.TextGen.Model)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.TextGen.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.TextGen.Timeout)
	assert.InDelta(t, 1.0, cfg.TextGen.RateLimitRPS, 0)
	assert.Equal(t, 3, cfg.TextGen.RateLimitBurst)
	assert.False(t, cfg.TextGen.Enabled())
	assert.Len(t, cfg.Warnings, 2, "blob store and text generation warnings")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE", "DuckDB")
	t.Setenv("COLLISION_POLICY", "rename")
	t.Setenv("HISTORY_DB_PATH", "/tmp/history.sqlite")
	t.Setenv("EXPORT_TABLE_NAME", "results")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("BLOB_STORE", "s3")
	t.Setenv("KEY_ID", "testkey")
	t.Setenv("SECRET", "testsecret")
	t.Setenv("ENDPOINT", "https://s3.example.com")
	t.Setenv("REGION", "eu-central")
	t.Setenv("BUCKET", "test-bucket")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("TEXTGEN_TIMEOUT", "15s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Engine)
	assert.Equal(t, "rename", cfg.CollisionPolicy)
	assert.Equal(t, "/tmp/history.sqlite", cfg.HistoryDBPath)
	assert.Equal(t, "results", cfg.ExportTableName)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, BlobS3, cfg.BlobStore.Kind)
	assert.Equal(t, "test-bucket", cfg.BlobStore.S3Bucket)
	assert.Equal(t, "testkey", cfg.BlobStore.S3KeyID)
	assert.True(t, cfg.TextGen.Enabled())
	assert.Equal(t, 15*time.Second, cfg.TextGen.Timeout)
	assert.InDelta(t, 2.5, cfg.TextGen.RateLimitRPS, 0)
	assert.Equal(t, 5, cfg.TextGen.RateLimitBurst)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "engine", env: map[string]string{"ENGINE": "postgres"}, want: "ENGINE"},
		{name: "policy", env: map[string]string{"COLLISION_POLICY": "merge"}, want: "COLLISION_POLICY"},
		{name: "log_format", env: map[string]string{"LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "blob_kind", env: map[string]string{"BLOB_STORE": "ftp"}, want: "BLOB_STORE"},
		{name: "fs_without_dir", env: map[string]string{"BLOB_STORE": "fs"}, want: "BLOB_DIR"},
		{name: "s3_without_bucket", env: map[string]string{"BLOB_STORE": "s3"}, want: "BUCKET"},
		{name: "s3_half_credentials", env: map[string]string{"BLOB_STORE": "s3", "BUCKET": "b", "KEY_ID": "k"}, want: "KEY_ID"},
		{name: "gcs_without_bucket", env: map[string]string{"BLOB_STORE": "gcs"}, want: "GCS_BUCKET"},
		{name: "azure_without_key", env: map[string]string{"BLOB_STORE": "azure", "AZURE_CONTAINER": "c"}, want: "AZURE_ACCOUNT_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dbunify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine: duckdb
collision_policy: error
log_level: debug
blob_store:
  kind: fs
  dir: /var/lib/dbunify
  prefix: team-a
text_generation:
  model: some/other-model
  timeout: 30s
`), 0o600))
	t.Setenv("COLLISION_POLICY", "rename")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Engine)
	assert.Equal(t, "rename", cfg.CollisionPolicy, "environment wins over the file")
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, BlobFS, cfg.BlobStore.Kind)
	assert.Equal(t, "/var/lib/dbunify", cfg.BlobStore.Dir)
	assert.Equal(t, "team-a", cfg.BlobStore.Prefix)
	assert.Equal(t, "some/other-model", cfg.TextGen.Model)
	assert.Equal(t, 30*time.Second, cfg.TextGen.Timeout)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unterminated"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "bogus": slog.LevelInfo,
	} {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	t.Setenv("TEST_KEY", "")
	_ = os.Unsetenv("TEST_KEY")
	t.Setenv("TEST_QUOTED", "")
	_ = os.Unsetenv("TEST_QUOTED")

	envFile := filepath.Join(t.TempDir(), ".env")
	err := os.WriteFile(envFile, []byte("# comment\n\nTEST_KEY=test_value\nexport TEST_QUOTED='a b'\nnot a pair\n"), 0o600)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	if val := os.Getenv("TEST_QUOTED"); val != "a b" {
		t.Errorf("TEST_QUOTED = %q, want %q", val, "a b")
	}
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	envFile := filepath.Join(t.TempDir(), ".env")
	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0o600)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "x", stripQuotes(`"x"`))
	assert.Equal(t, "x", stripQuotes(`'x'`))
	assert.Equal(t, `"x'`, stripQuotes(`"x'`))
	assert.Equal(t, `"`, stripQuotes(`"`))
}
