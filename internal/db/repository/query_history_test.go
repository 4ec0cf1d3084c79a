package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbunify/internal/db"
	"dbunify/internal/domain"
)

func newHistoryRepo(t *testing.T) *QueryHistoryRepo {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	return NewQueryHistoryRepo(writeDB, readDB)
}

func TestQueryHistoryRepo_InsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := newHistoryRepo(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &domain.QueryRecord{
		Timestamp: ts, SQL: "SELECT 1", Elapsed: 1500 * time.Microsecond,
		RowCount: 1, Status: domain.QueryStatusSuccess,
	}
	second := &domain.QueryRecord{
		Timestamp: ts.Add(time.Second), SQL: "SELEC", Status: domain.QueryStatusError,
		Error: "syntax error",
	}
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	entries, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	assert.Equal(t, "SELEC", entries[0].SQL, "newest first")
	assert.Equal(t, "syntax error", entries[0].Error)
	assert.Equal(t, domain.QueryStatusError, entries[0].Status)

	assert.Equal(t, "SELECT 1", entries[1].SQL)
	assert.Equal(t, 1, entries[1].RowCount)
	assert.Equal(t, 1500*time.Microsecond, entries[1].Elapsed)
	assert.True(t, ts.Equal(entries[1].Timestamp))
	assert.Empty(t, entries[1].Error)
}

func TestQueryHistoryRepo_Pagination(t *testing.T) {
	ctx := context.Background()
	repo := newHistoryRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.QueryRecord{
			Timestamp: time.Now(), SQL: "SELECT 1", Status: domain.QueryStatusSuccess,
		}))
	}

	page, total, err := repo.List(ctx, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)

	token := domain.NextPageToken(0, 2, total)
	page2, _, err := repo.List(ctx, domain.PageRequest{MaxResults: 2, PageToken: token})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Less(t, page2[0].ID, page[1].ID)
}

func TestQueryHistoryRepo_ClearKeepsIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := newHistoryRepo(t)

	rec := &domain.QueryRecord{Timestamp: time.Now(), SQL: "SELECT 1", Status: domain.QueryStatusSuccess}
	require.NoError(t, repo.Insert(ctx, rec))
	lastID := rec.ID

	require.NoError(t, repo.Clear(ctx))

	entries, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)

	next := &domain.QueryRecord{Timestamp: time.Now(), SQL: "SELECT 2", Status: domain.QueryStatusSuccess}
	require.NoError(t, repo.Insert(ctx, next))
	assert.Greater(t, next.ID, lastID)
}
