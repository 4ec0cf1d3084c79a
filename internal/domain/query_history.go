package domain

import "time"

// Query history statuses.
const (
	QueryStatusSuccess = "success"
	QueryStatusError   = "error"
)

// QueryRecord is one immutable History Ledger entry.
type QueryRecord struct {
	ID        int64
	Timestamp time.Time
	SQL       string
	Elapsed   time.Duration
	RowCount  int
	Status    string
	Error     string
}
