package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"dbunify/internal/ddl"
	"dbunify/internal/domain"
)

// DuckDB is the duckdb-go backend.
type DuckDB struct {
	opts Options
}

var _ domain.Engine = (*DuckDB)(nil)

// NewDuckDB creates the DuckDB backend.
func NewDuckDB(opts Options) *DuckDB {
	return &DuckDB{opts: opts}
}

// Name implements domain.Engine.
func (e *DuckDB) Name() string { return FormatDuckDB }

// OpenImage spools raw to disk and attaches it in read-only access mode.
func (e *DuckDB) OpenImage(ctx context.Context, name string, raw []byte) (domain.Conn, error) {
	if len(raw) == 0 {
		return nil, loadFailed(name, "", errors.New("image is empty"))
	}
	if DetectFormat(raw) != FormatDuckDB {
		return nil, loadFailed(name, "", errors.New("not a DuckDB database image"))
	}

	path, err := spool(e.opts.SpoolDir, ".duckdb", raw)
	if err != nil {
		return nil, loadFailed(name, "", err)
	}

	conn, err := openDuckDB(ctx, path+"?access_mode=read_only")
	if err != nil {
		return nil, loadFailed(name, path, err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM duckdb_tables()").Scan(&n); err != nil {
		_ = conn.Close()
		return nil, loadFailed(name, path, fmt.Errorf("read catalog: %w", err))
	}

	e.opts.logger().Debug("opened source image", "engine", e.Name(), "source", name, "bytes", len(raw), "tables", n)
	return &imageConn{Conn: conn, path: path, logger: e.opts.logger()}, nil
}

// OpenTarget opens a fresh in-memory database. All pooled connections of one
// connector share the same database instance.
func (e *DuckDB) OpenTarget(ctx context.Context) (domain.Conn, error) {
	conn, err := openDuckDB(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("open unified database: %w", err)
	}
	return conn, nil
}

func openDuckDB(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return conn, nil
}

const duckdbMainSchema = "database_name = current_database() AND schema_name = 'main'"

// ListTables implements domain.Engine.
func (e *DuckDB) ListTables(ctx context.Context, conn domain.Conn) ([]domain.CatalogTable, error) {
	rows, err := conn.QueryContext(ctx, `SELECT table_name, COALESCE(sql, '') FROM duckdb_tables()
		WHERE `+duckdbMainSchema+` AND NOT internal AND NOT temporary
		ORDER BY table_oid`)
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
func (e *DuckDB) ListColumns(ctx context.Context, conn domain.Conn, table string) ([]domain.ColumnDescriptor, error) {
	rows, err := conn.QueryContext(ctx, `SELECT column_name, data_type FROM duckdb_columns()
		WHERE `+duckdbMainSchema+` AND table_name = ?
		ORDER BY column_index`, table)
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

// HasTable implements domain.Engine. DuckDB identifiers are case-insensitive.
func (e *DuckDB) HasTable(ctx context.Context, conn domain.Conn, table string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx, `SELECT count(*) FROM duckdb_tables()
		WHERE `+duckdbMainSchema+` AND lower(table_name) = lower(?)`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %q: %w", table, err)
	}
	return n > 0, nil
}

// SelectRowsSQL implements domain.Engine.
func (e *DuckDB) SelectRowsSQL(table string, columns []string) string {
	if len(columns) == 0 {
		return "SELECT * FROM " + ddl.QuoteIdentifier(table)
	}
	return "SELECT " + ddl.QuoteIdentifiers(columns) + " FROM " + ddl.QuoteIdentifier(table)
}

// InsertIgnoreSQL uses INSERT OR IGNORE when the target table has a primary
// key or unique constraint. DuckDB rejects the OR IGNORE form otherwise, and
// without a constraint there is nothing to conflict on.
func (e *DuckDB) InsertIgnoreSQL(ctx context.Context, conn domain.Conn, table string, columns []string) (string, error) {
	keys, err := scanStrings(ctx, conn, `SELECT constraint_type FROM duckdb_constraints()
		WHERE `+duckdbMainSchema+` AND lower(table_name) = lower(?)`, table)
	if err != nil {
		return "", fmt.Errorf("constraints of %q: %w", table, err)
	}
	verb := "INSERT INTO"
	for _, k := range keys {
		if k := strings.ToUpper(k); k == "PRIMARY KEY" || k == "UNIQUE" {
			verb = "INSERT OR IGNORE INTO"
			break
		}
	}
	return insertSQL(verb, table, columns), nil
}
