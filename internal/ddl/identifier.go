// Package ddl holds small SQL text helpers used when replaying and
// synthesizing table definitions.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them (standard SQL).
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QuoteIdentifiers quotes every name and joins them with ", ".
func QuoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// createTablePrefixRe matches the head of a CREATE TABLE statement up to and
// including the table name. The name may be double-quoted, backtick-quoted,
// bracketed, or bare, and may carry a schema qualifier.
var createTablePrefixRe = regexp.MustCompile(
	`(?is)^\s*CREATE\s+(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
		`(?:(?:"(?:[^"]|"")+"|` + "`[^`]+`" + `|\[[^\]]+\]|[A-Za-z_][A-Za-z0-9_$]*)\s*\.\s*)?` +
		`(?:"(?:[^"]|"")+"|` + "`[^`]+`" + `|\[[^\]]+\]|[^\s(]+)`)

var createTableHeadRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?`)

// RenameCreateTable rewrites the table name of a CREATE TABLE statement.
// Any schema qualifier is dropped so the table lands in the main schema.
func RenameCreateTable(createSQL, newName string) (string, error) {
	loc := createTablePrefixRe.FindStringIndex(createSQL)
	if loc == nil {
		return "", fmt.Errorf("not a CREATE TABLE statement: %q", truncate(createSQL, 60))
	}
	keywords := createTableHeadRe.FindString(createSQL[:loc[1]])
	return keywords + QuoteIdentifier(newName) + createSQL[loc[1]:], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
