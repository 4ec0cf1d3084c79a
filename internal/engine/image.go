// Package engine implements the embedded relational engines that source
// images are opened with and that host the unified database.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"dbunify/internal/domain"
)

// Image formats recognized by DetectFormat.
const (
	FormatUnknown = ""
	FormatSQLite  = "sqlite"
	FormatDuckDB  = "duckdb"
)

// sqliteHeaderSize is the fixed size of the SQLite database header.
const sqliteHeaderSize = 100

var (
	sqliteMagic = []byte("SQLite format 3\x00")
	duckdbMagic = []byte("DUCK")
)

// duckdbMagicOffset is where the DuckDB magic bytes start; the first eight
// bytes hold a checksum.
const duckdbMagicOffset = 8

// DetectFormat inspects the leading bytes of a database image.
func DetectFormat(raw []byte) string {
	switch {
	case len(raw) >= sqliteHeaderSize && bytes.HasPrefix(raw, sqliteMagic):
		return FormatSQLite
	case len(raw) >= duckdbMagicOffset+len(duckdbMagic) &&
		bytes.Equal(raw[duckdbMagicOffset:duckdbMagicOffset+len(duckdbMagic)], duckdbMagic):
		return FormatDuckDB
	default:
		return FormatUnknown
	}
}

// Options configures an engine backend.
type Options struct {
	// SpoolDir receives the temporary files source images are opened from.
	// Empty means os.TempDir().
	SpoolDir string
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// New returns the backend registered under name.
func New(name string, opts Options) (domain.Engine, error) {
	switch name {
	case "", FormatSQLite:
		return NewSQLite(opts), nil
	case FormatDuckDB:
		return NewDuckDB(opts), nil
	default:
		return nil, domain.ErrValidation("unknown engine %q: must be one of sqlite, duckdb", name)
	}
}

// spool writes raw to a uniquely named file under dir and returns its path.
func spool(dir, ext string, raw []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	path := filepath.Join(dir, "source-"+uuid.NewString()+ext)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("spool image: %w", err)
	}
	return path, nil
}

// imageConn is a source handle backed by a spooled file; closing it removes
// the file.
type imageConn struct {
	domain.Conn
	path   string
	logger *slog.Logger
}

func (c *imageConn) Close() error {
	err := c.Conn.Close()
	if rmErr := os.Remove(c.path); rmErr != nil && !os.IsNotExist(rmErr) {
		c.logger.Warn("remove spooled image", "path", c.path, "error", rmErr)
	}
	return err
}

// loadFailed removes a spooled file and wraps err as a load failure.
func loadFailed(name, path string, err error) error {
	if path != "" {
		_ = os.Remove(path)
	}
	return &domain.LoadError{Source: name, Err: err}
}

// scanStrings collects a single-column string result.
func scanStrings(ctx context.Context, conn domain.Conn, query string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
