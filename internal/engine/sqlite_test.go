package engine_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbunify/internal/domain"
	"dbunify/internal/engine"
	"dbunify/internal/testutil"
)

var ctx = context.Background()

func TestDetectFormat(t *testing.T) {
	sqliteRaw := testutil.SQLiteImage(t, "CREATE TABLE t (id INTEGER)")
	duckRaw := testutil.DuckDBImage(t, "CREATE TABLE t (id INTEGER)")

	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "sqlite", raw: sqliteRaw, want: engine.FormatSQLite},
		{name: "duckdb", raw: duckRaw, want: engine.FormatDuckDB},
		{name: "empty", raw: nil, want: engine.FormatUnknown},
		{name: "text", raw: []byte("hello, this is not a database at all"), want: engine.FormatUnknown},
		{name: "truncated_sqlite_header", raw: []byte("SQLite format 3\x00"), want: engine.FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.DetectFormat(tt.raw))
		})
	}
}

func TestNew(t *testing.T) {
	e, err := engine.New("", engine.Options{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", e.Name())

	e, err = engine.New("duckdb", engine.Options{})
	require.NoError(t, err)
	assert.Equal(t, "duckdb", e.Name())

	_, err = engine.New("postgres", engine.Options{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "postgres")
}

func TestSQLite_OpenImage_Invalid(t *testing.T) {
	e := engine.NewSQLite(engine.Options{SpoolDir: t.TempDir()})

	corrupt := testutil.SQLiteImage(t, "CREATE TABLE t (id INTEGER)")
	corrupt[16], corrupt[17] = 0x00, 0x03 // page size is not a power of two

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "garbage", raw: []byte("definitely not a sqlite file, just some bytes padding it out")},
		{name: "duckdb_image", raw: testutil.DuckDBImage(t, "CREATE TABLE t (id INTEGER)")},
		{name: "corrupt_header", raw: corrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := e.OpenImage(ctx, "bad.db", tt.raw)
			require.Error(t, err)
			assert.Nil(t, conn)

			var le *domain.LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, "bad.db", le.Source)
			assert.Equal(t, "load", domain.Stage(err))
		})
	}
}

func TestSQLite_OpenImage_Catalog(t *testing.T) {
	spoolDir := t.TempDir()
	e := engine.NewSQLite(engine.Options{SpoolDir: spoolDir})

	raw := testutil.SQLiteImage(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, joined DATE)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, total REAL)",
		"CREATE INDEX idx_orders_user ON orders(user_id)",
		"CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100",
		"INSERT INTO users (name, joined) VALUES ('ada', '2024-01-02')",
	)

	conn, err := e.OpenImage(ctx, "shop.db", raw)
	require.NoError(t, err)

	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "image is spooled to the spool dir")

	tables, err := e.ListTables(ctx, conn)
	require.NoError(t, err)
	require.Len(t, tables, 2, "sqlite_sequence, indexes and views are excluded")
	assert.Equal(t, "users", tables[0].Name)
	assert.Equal(t, "orders", tables[1].Name)
	assert.Contains(t, tables[0].CreateSQL, "CREATE TABLE users")

	cols, err := e.ListColumns(ctx, conn, "users")
	require.NoError(t, err)
	assert.Equal(t, []domain.ColumnDescriptor{
		{Name: "id", DeclaredType: "INTEGER"},
		{Name: "name", DeclaredType: "TEXT"},
		{Name: "joined", DeclaredType: "DATE"},
	}, cols)

	ok, err := e.HasTable(ctx, conn, "USERS")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.HasTable(ctx, conn, "big_orders")
	require.NoError(t, err)
	assert.False(t, ok, "views are not tables")

	t.Run("rows keep stored text for date columns", func(t *testing.T) {
		rows, err := conn.QueryContext(ctx, e.SelectRowsSQL("users", []string{"id", "name", "joined"}))
		require.NoError(t, err)
		defer rows.Close() //nolint:errcheck
		require.True(t, rows.Next())
		var id, name, joined any
		require.NoError(t, rows.Scan(&id, &name, &joined))
		assert.EqualValues(t, 1, id)
		assert.Equal(t, "2024-01-02", asString(joined))
	})

	t.Run("read only", func(t *testing.T) {
		_, err := conn.ExecContext(ctx, "INSERT INTO orders (user_id, total) VALUES (1, 5)")
		require.Error(t, err)
	})

	require.NoError(t, conn.Close())
	entries, err = os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "closing removes the spooled file")
}

func TestSQLite_Target(t *testing.T) {
	e := engine.NewSQLite(engine.Options{})

	a, err := e.OpenTarget(ctx)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck
	b, err := e.OpenTarget(ctx)
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck

	_, err = a.ExecContext(ctx, "CREATE TABLE only_in_a (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	tables, err := e.ListTables(ctx, a)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	tables, err = e.ListTables(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, tables, "targets are isolated")

	stmt, err := e.InsertIgnoreSQL(ctx, a, "only_in_a", []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT OR IGNORE INTO "only_in_a" ("id") VALUES (?)`, stmt)

	for i := 0; i < 2; i++ {
		_, err = a.ExecContext(ctx, stmt, 7)
		require.NoError(t, err, "duplicate keys are ignored")
	}
	var n int
	require.NoError(t, a.QueryRowContext(ctx, "SELECT count(*) FROM only_in_a").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_SelectRowsSQL(t *testing.T) {
	e := engine.NewSQLite(engine.Options{})
	assert.Equal(t, `SELECT +"a", +"b c" FROM "t"`, e.SelectRowsSQL("t", []string{"a", "b c"}))
	assert.Equal(t, `SELECT * FROM "t"`, e.SelectRowsSQL("t", nil))
}

func asString(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return ""
	}
}
