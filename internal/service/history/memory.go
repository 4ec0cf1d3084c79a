package history

import (
	"context"
	"sync"

	"dbunify/internal/domain"
)

var _ domain.QueryHistoryRepository = (*MemoryStore)(nil)

// MemoryStore keeps history entries in process memory. IDs keep increasing
// across Clear.
type MemoryStore struct {
	mu      sync.Mutex
	records []domain.QueryRecord
	lastID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert implements domain.QueryHistoryRepository.
func (s *MemoryStore) Insert(_ context.Context, rec *domain.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	rec.ID = s.lastID
	s.records = append(s.records, *rec)
	return nil
}

// List implements domain.QueryHistoryRepository.
func (s *MemoryStore) List(_ context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.records)
	offset, limit := page.Offset(), page.Limit()
	if offset >= total {
		return nil, int64(total), nil
	}
	end := min(offset+limit, total)

	out := make([]domain.QueryRecord, 0, end-offset)
	for i := total - 1 - offset; i >= total-end; i-- {
		out = append(out, s.records[i])
	}
	return out, int64(total), nil
}

// Clear implements domain.QueryHistoryRepository.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
