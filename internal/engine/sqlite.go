package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dbunify/internal/db"
	"dbunify/internal/ddl"
	"dbunify/internal/domain"
)

// SQLite is the mattn/go-sqlite3 backend.
type SQLite struct {
	opts Options
}

var _ domain.Engine = (*SQLite)(nil)

// NewSQLite creates the SQLite backend.
func NewSQLite(opts Options) *SQLite {
	return &SQLite{opts: opts}
}

// Name implements domain.Engine.
func (e *SQLite) Name() string { return FormatSQLite }

// OpenImage spools raw to disk and opens it as an immutable read-only
// database. The catalog is read once so a corrupt image fails here rather
// than during unification.
func (e *SQLite) OpenImage(ctx context.Context, name string, raw []byte) (domain.Conn, error) {
	if len(raw) == 0 {
		return nil, loadFailed(name, "", errors.New("image is empty"))
	}
	if DetectFormat(raw) != FormatSQLite {
		return nil, loadFailed(name, "", errors.New("not a SQLite database image"))
	}

	path, err := spool(e.opts.SpoolDir, ".sqlite", raw)
	if err != nil {
		return nil, loadFailed(name, "", err)
	}

	conn, err := db.OpenSQLite(path, db.ModeImage, 1)
	if err != nil {
		return nil, loadFailed(name, path, err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		_ = conn.Close()
		return nil, loadFailed(name, path, fmt.Errorf("read catalog: %w", err))
	}

	e.opts.logger().Debug("opened source image", "engine", e.Name(), "source", name, "bytes", len(raw), "objects", n)
	return &imageConn{Conn: conn, path: path, logger: e.opts.logger()}, nil
}

// OpenTarget creates a private shared-cache in-memory database. The pool
// holds exactly one connection, which keeps the database alive until Close.
func (e *SQLite) OpenTarget(_ context.Context) (domain.Conn, error) {
	conn, err := db.OpenSQLite("unified-"+uuid.NewString(), db.ModeMemory, 1)
	if err != nil {
		return nil, fmt.Errorf("open unified database: %w", err)
	}
	return conn, nil
}

// ListTables implements domain.Engine.
func (e *SQLite) ListTables(ctx context.Context, conn domain.Conn) ([]domain.CatalogTable, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name, COALESCE(sql, '') FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.CatalogTable
	for rows.Next() {
		var t domain.CatalogTable
		if err := rows.Scan(&t.Name, &t.CreateSQL); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// ListColumns implements domain.Engine.
func (e *SQLite) ListColumns(ctx context.Context, conn domain.Conn, table string) ([]domain.ColumnDescriptor, error) {
	rows, err := conn.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info %q: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.ColumnDescriptor
	for rows.Next() {
		var c domain.ColumnDescriptor
		if err := rows.Scan(&c.Name, &c.DeclaredType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info %q: %w", table, err)
	}
	return cols, nil
}

// HasTable implements domain.Engine. SQLite table names are case-insensitive.
func (e *SQLite) HasTable(ctx context.Context, conn domain.Conn, table string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE",
		table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %q: %w", table, err)
	}
	return n > 0, nil
}

// SelectRowsSQL reads each column through a unary plus. The expression has
// no declared type, so the driver returns stored values as-is instead of
// parsing DATE/DATETIME/TIMESTAMP text into time.Time.
func (e *SQLite) SelectRowsSQL(table string, columns []string) string {
	if len(columns) == 0 {
		return "SELECT * FROM " + ddl.QuoteIdentifier(table)
	}
	exprs := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = "+" + ddl.QuoteIdentifier(c)
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + ddl.QuoteIdentifier(table)
}

// InsertIgnoreSQL implements domain.Engine.
func (e *SQLite) InsertIgnoreSQL(_ context.Context, _ domain.Conn, table string, columns []string) (string, error) {
	return insertSQL("INSERT OR IGNORE INTO", table, columns), nil
}

func insertSQL(verb, table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("%s %s (%s) VALUES (%s)",
		verb, ddl.QuoteIdentifier(table), ddl.QuoteIdentifiers(columns), placeholders)
}
