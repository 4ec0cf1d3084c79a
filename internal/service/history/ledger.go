// Package history records executed batches.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dbunify/internal/domain"
)

// Ledger is the append-only record of executed batches. It never influences
// execution.
type Ledger struct {
	repo   domain.QueryHistoryRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger over repo. A nil repo keeps history in memory.
func NewLedger(repo domain.QueryHistoryRepository, logger *slog.Logger) *Ledger {
	if repo == nil {
		repo = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{repo: repo, logger: logger, now: time.Now}
}

// SetClock overrides the timestamp source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Record appends an entry. A non-nil execErr marks the entry as failed with a
// row count of zero.
func (l *Ledger) Record(ctx context.Context, sqlText string, rowCount int, elapsed time.Duration, execErr error) (*domain.QueryRecord, error) {
	rec := &domain.QueryRecord{
		Timestamp: l.now(),
		SQL:       strings.TrimSpace(sqlText),
		Elapsed:   elapsed,
		RowCount:  rowCount,
		Status:    domain.QueryStatusSuccess,
	}
	if execErr != nil {
		rec.Status = domain.QueryStatusError
		rec.Error = execErr.Error()
		rec.RowCount = 0
	}

	if err := l.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("record query: %w", err)
	}
	l.logger.Debug("query recorded", "id", rec.ID, "status", rec.Status, "rows", rec.RowCount, "elapsed", elapsed)
	return rec, nil
}

// List returns entries newest first and the total number of entries.
func (l *Ledger) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error) {
	return l.repo.List(ctx, page)
}

// Clear empties the ledger.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	l.logger.Info("query history cleared")
	return nil
}
