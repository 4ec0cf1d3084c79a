// Package testutil provides shared fixtures and mock implementations of
// domain interfaces for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"dbunify/internal/domain"
)

// === Source Store Mock ===

// MockSourceStore implements domain.SourceStore for testing. Without SaveFn
// and LoadFn it behaves as an in-memory store.
type MockSourceStore struct {
	SaveFn  func(ctx context.Context, sources []domain.SourceImage) error
	LoadFn  func(ctx context.Context) ([]domain.SourceImage, error)
	ClearFn func(ctx context.Context) error

	mu     sync.Mutex
	Saved  []domain.SourceImage // last saved set
	Saves  int                  // number of Save calls
	Clears int                  // number of Clear calls
}

// Save implements the interface method for testing.
func (m *MockSourceStore) Save(ctx context.Context, sources []domain.SourceImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveFn != nil {
		if err := m.SaveFn(ctx, sources); err != nil {
			return err
		}
	}
	m.Saved = append([]domain.SourceImage(nil), sources...)
	return nil
}

// Load implements the interface method for testing.
func (m *MockSourceStore) Load(ctx context.Context) ([]domain.SourceImage, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SourceImage(nil), m.Saved...), nil
}

// Clear implements the interface method for testing.
func (m *MockSourceStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	if m.ClearFn != nil {
		if err := m.ClearFn(ctx); err != nil {
			return err
		}
	}
	m.Saved = nil
	return nil
}

// === SQL Generator Mock ===

// MockSQLGenerator implements domain.SQLGenerator for testing.
type MockSQLGenerator struct {
	GenerateSQLFn func(ctx context.Context, prompt string, schema []domain.TableDescriptor) (string, error)
	Prompts       []string // collected prompts for assertions
}

// GenerateSQL implements the interface method for testing.
func (m *MockSQLGenerator) GenerateSQL(ctx context.Context, prompt string, schema []domain.TableDescriptor) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateSQLFn != nil {
		return m.GenerateSQLFn(ctx, prompt, schema)
	}
	panic("unexpected call to MockSQLGenerator.GenerateSQL")
}

// === Query History Repository Mock ===

// MockQueryHistoryRepo implements domain.QueryHistoryRepository for testing.
type MockQueryHistoryRepo struct {
	InsertFn func(ctx context.Context, rec *domain.QueryRecord) error
	ListFn   func(ctx context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error)
	ClearFn  func(ctx context.Context) error
	Records  []domain.QueryRecord // collected inserts for assertions
}

// Insert implements the interface method for testing.
func (m *MockQueryHistoryRepo) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, rec); err != nil {
			return err
		}
	}
	m.Records = append(m.Records, *rec)
	return nil
}

// List implements the interface method for testing.
func (m *MockQueryHistoryRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to MockQueryHistoryRepo.List")
}

// Clear implements the interface method for testing.
func (m *MockQueryHistoryRepo) Clear(ctx context.Context) error {
	if m.ClearFn != nil {
		return m.ClearFn(ctx)
	}
	m.Records = nil
	return nil
}
