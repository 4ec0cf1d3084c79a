// Package repository implements persistent stores on top of the SQLite history database.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dbunify/internal/domain"
)

// Compile-time check.
var _ domain.QueryHistoryRepository = (*QueryHistoryRepo)(nil)

const historyTimeLayout = time.RFC3339Nano

// QueryHistoryRepo stores History Ledger entries in SQLite.
// Writes go through writeDB (single connection); reads through readDB.
type QueryHistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewQueryHistoryRepo creates a QueryHistoryRepo. readDB may be nil, in which
// case writeDB serves reads too.
func NewQueryHistoryRepo(writeDB, readDB *sql.DB) *QueryHistoryRepo {
	if readDB == nil {
		readDB = writeDB
	}
	return &QueryHistoryRepo{writeDB: writeDB, readDB: readDB}
}

// Insert stores rec and sets rec.ID from the AUTOINCREMENT key.
func (r *QueryHistoryRepo) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	res, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO query_history (sql_text, status, error_message, row_count, elapsed_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SQL, rec.Status, errMsg, rec.RowCount, rec.Elapsed.Microseconds(),
		rec.Timestamp.UTC().Format(historyTimeLayout))
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("query history id: %w", err)
	}
	rec.ID = id
	return nil
}

// List returns entries newest first.
func (r *QueryHistoryRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error) {
	var total int64
	if err := r.readDB.QueryRowContext(ctx, `SELECT count(*) FROM query_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query history: %w", err)
	}

	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, sql_text, status, error_message, row_count, elapsed_us, created_at
		FROM query_history
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list query history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.QueryRecord
	for rows.Next() {
		var (
			rec       domain.QueryRecord
			errMsg    sql.NullString
			elapsedUs int64
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SQL, &rec.Status, &errMsg, &rec.RowCount, &elapsedUs, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan query history: %w", err)
		}
		rec.Error = errMsg.String
		rec.Elapsed = time.Duration(elapsedUs) * time.Microsecond
		rec.Timestamp, err = time.Parse(historyTimeLayout, createdAt)
		if err != nil {
			slog.Default().Warn("failed to parse query history created_at", "value", createdAt, "error", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list query history: %w", err)
	}

	return out, total, nil
}

// Clear deletes all entries. AUTOINCREMENT keeps future IDs increasing.
func (r *QueryHistoryRepo) Clear(ctx context.Context) error {
	if _, err := r.writeDB.ExecContext(ctx, `DELETE FROM query_history`); err != nil {
		return fmt.Errorf("clear query history: %w", err)
	}
	return nil
}
