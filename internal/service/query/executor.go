package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dbunify/internal/domain"
	"dbunify/internal/sqltext"
)

// Executor runs multi-statement SQL batches against a unified database.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute splits sqlText into statements and runs them in order on conn.
//
// Rows of every result-producing statement are concatenated, each keeping
// its own column list. The first failing statement aborts the batch with a
// *domain.ExecutionError and the rows gathered so far are discarded. Side
// effects of statements that already ran are not rolled back.
func (x *Executor) Execute(ctx context.Context, conn domain.Conn, sqlText string) (*domain.ResultSet, error) {
	stmts := sqltext.Split(sqlText)
	if len(stmts) == 0 {
		return nil, domain.ErrValidation("no SQL statements to execute")
	}

	result := &domain.ResultSet{}
	start := time.Now()
	for i, stmt := range stmts {
		rs, err := runStatement(ctx, conn, stmt)
		if err != nil {
			x.logger.Debug("statement failed", "index", i, "error", err)
			return nil, &domain.ExecutionError{
				Message:   err.Error(),
				Statement: stmt,
				Index:     i,
				Err:       err,
			}
		}
		result.Append(rs)
	}

	x.logger.Debug("batch executed",
		"statements", len(stmts), "rows", result.RowCount(), "elapsed", time.Since(start))
	return result, nil
}

// runStatement executes one statement. Statements that cannot return rows
// yield nil.
func runStatement(ctx context.Context, conn domain.Conn, stmt string) (*domain.ResultSet, error) {
	if !sqltext.ReturnsRows(stmt) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
		return nil, nil
	}

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	// Rows must be drained even when there are no columns: the sqlite3 driver
	// only runs the statement on the first Next.
	rs := &domain.ResultSet{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := domain.Row{Columns: cols, Values: make([]any, len(cols))}
		for i, v := range vals {
			row.Values[i] = NormalizeColumn(v, dbTypes[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return rs, nil
}
