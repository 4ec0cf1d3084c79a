package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultSet_Append(t *testing.T) {
	rs := &ResultSet{}
	rs.Append(&ResultSet{
		Columns: []string{"a", "b"},
		Rows:    []Row{{Columns: []string{"a", "b"}, Values: []any{int64(1), "x"}}},
	})
	rs.Append(&ResultSet{
		Columns: []string{"b", "c"},
		Rows:    []Row{{Columns: []string{"b", "c"}, Values: []any{"y", nil}}},
	})
	rs.Append(nil)

	assert.Equal(t, []string{"a", "b", "c"}, rs.Columns)
	assert.Equal(t, 2, rs.RowCount())

	v, ok := rs.Rows[1].Get("b")
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = rs.Rows[1].Get("a")
	assert.False(t, ok, "second row comes from a statement without column a")
}

func TestResultSet_NilRowCount(t *testing.T) {
	var rs *ResultSet
	assert.Equal(t, 0, rs.RowCount())
}

func TestFindTable(t *testing.T) {
	tables := []TableDescriptor{{ID: TableID(0, "Users"), Name: "Users"}}

	got, ok := FindTable(tables, "users")
	assert.True(t, ok)
	assert.Equal(t, "0-Users", got.ID)

	_, ok = FindTable(tables, "orders")
	assert.False(t, ok)
}
