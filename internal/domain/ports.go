package domain

import (
	"context"
	"database/sql"
)

// Conn is the narrow capability the engine core needs from an embedded
// relational engine handle. *sql.DB satisfies it.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	Close() error
}

// Engine opens handles for one embedded relational engine and knows how to
// read its catalog. Everything engine-specific lives behind this interface.
type Engine interface {
	// Name identifies the engine ("sqlite", "duckdb").
	Name() string
	// OpenImage opens raw database bytes read-only. Invalid images yield a *LoadError.
	OpenImage(ctx context.Context, name string, raw []byte) (Conn, error)
	// OpenTarget creates a fresh, empty in-memory database.
	OpenTarget(ctx context.Context) (Conn, error)
	// ListTables returns user tables in creation order, excluding reserved names.
	ListTables(ctx context.Context, conn Conn) ([]CatalogTable, error)
	// ListColumns returns the columns of table in declaration order.
	ListColumns(ctx context.Context, conn Conn, table string) ([]ColumnDescriptor, error)
	// HasTable reports whether a table with that name exists.
	HasTable(ctx context.Context, conn Conn, table string) (bool, error)
	// SelectRowsSQL builds the statement that reads every row of table.
	SelectRowsSQL(table string, columns []string) string
	// InsertIgnoreSQL builds a single-row insert that drops uniqueness conflicts.
	InsertIgnoreSQL(ctx context.Context, conn Conn, table string, columns []string) (string, error)
}

// QueryHistoryRepository stores History Ledger entries.
type QueryHistoryRepository interface {
	// Insert assigns rec.ID and stores it.
	Insert(ctx context.Context, rec *QueryRecord) error
	// List returns entries newest first and the total count.
	List(ctx context.Context, page PageRequest) ([]QueryRecord, int64, error)
	Clear(ctx context.Context) error
}

// SourceStore persists uploaded source images between sessions.
type SourceStore interface {
	Save(ctx context.Context, sources []SourceImage) error
	Load(ctx context.Context) ([]SourceImage, error)
	Clear(ctx context.Context) error
}

// SQLGenerator turns a natural-language prompt into SQL text for a schema.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, prompt string, schema []TableDescriptor) (string, error)
}
