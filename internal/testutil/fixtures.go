package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"github.com/stretchr/testify/require"

	"dbunify/internal/domain"
)

// SQLiteImage builds a SQLite database file from stmts and returns its bytes.
func SQLiteImage(t *testing.T, stmts ...string) []byte {
	t.Helper()
	return buildImage(t, "sqlite3", "fixture.sqlite", stmts)
}

// DuckDBImage builds a DuckDB database file from stmts and returns its bytes.
func DuckDBImage(t *testing.T, stmts ...string) []byte {
	t.Helper()
	return buildImage(t, "duckdb", "fixture.duckdb", stmts)
}

// SQLiteSource is a convenience wrapper returning a named SQLite image.
func SQLiteSource(t *testing.T, name string, stmts ...string) domain.SourceImage {
	t.Helper()
	return domain.SourceImage{Name: name, Data: SQLiteImage(t, stmts...)}
}

func buildImage(t *testing.T, driver, file string, stmts []string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), file)
	conn, err := sql.Open(driver, path)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)

	for _, stmt := range stmts {
		_, err := conn.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "fixture statement: %s", stmt)
	}
	require.NoError(t, conn.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}
