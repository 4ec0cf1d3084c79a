package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "users", want: `"users"`},
		{name: "with_double_quote", input: `my"table`, want: `"my""table"`},
		{name: "expression_column", input: "count(*)", want: `"count(*)"`},
		{name: "empty", input: "", want: `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'hello'", QuoteLiteral("hello"))
	assert.Equal(t, "'it''s'", QuoteLiteral("it's"))
	assert.Equal(t, "''", QuoteLiteral(""))
}

func TestQuoteIdentifiers(t *testing.T) {
	assert.Equal(t, `"a", "b c"`, QuoteIdentifiers([]string{"a", "b c"}))
	assert.Equal(t, "", QuoteIdentifiers(nil))
}

func TestRenameCreateTable(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare",
			input: "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
			want:  `CREATE TABLE "users_1" (id INTEGER PRIMARY KEY, name TEXT)`,
		},
		{
			name:  "no_space_before_paren",
			input: "CREATE TABLE users(id INTEGER)",
			want:  `CREATE TABLE "users_1"(id INTEGER)`,
		},
		{
			name:  "double_quoted_with_space",
			input: `CREATE TABLE "order items" (id INTEGER)`,
			want:  `CREATE TABLE "users_1" (id INTEGER)`,
		},
		{
			name:  "bracketed",
			input: "create table [users] (id int)",
			want:  `create table "users_1" (id int)`,
		},
		{
			name:  "backticked",
			input: "CREATE TABLE `users` (id int)",
			want:  `CREATE TABLE "users_1" (id int)`,
		},
		{
			name:  "if_not_exists",
			input: "CREATE TABLE IF NOT EXISTS users (id int)",
			want:  `CREATE TABLE IF NOT EXISTS "users_1" (id int)`,
		},
		{
			name:  "schema_qualified",
			input: `CREATE TABLE main."users" (id int)`,
			want:  `CREATE TABLE "users_1" (id int)`,
		},
		{
			name:  "multiline",
			input: "CREATE TABLE\n  users\n(\n  id int\n)",
			want:  "CREATE TABLE\n  \"users_1\"\n(\n  id int\n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenameCreateTable(tt.input, "users_1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenameCreateTable_NotCreateTable(t *testing.T) {
	_, err := RenameCreateTable("CREATE VIEW v AS SELECT 1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a CREATE TABLE")
}
