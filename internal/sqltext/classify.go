package sqltext

import (
	"regexp"
	"strings"
)

// StatementType represents the kind of SQL statement.
type StatementType int

// SQL statement types identified by Classify.
const (
	StmtSelect StatementType = iota
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtDDL
	StmtTransaction
	StmtOther
)

func (t StatementType) String() string {
	switch t {
	case StmtSelect:
		return "SELECT"
	case StmtInsert:
		return "INSERT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	case StmtDDL:
		return "DDL"
	case StmtTransaction:
		return "TRANSACTION"
	default:
		return "OTHER"
	}
}

var returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)

// Classify returns the statement type from the leading keyword of stmt.
// Leading comments and parentheses are skipped.
func Classify(stmt string) StatementType {
	switch FirstKeyword(stmt) {
	case "SELECT", "WITH", "VALUES", "TABLE", "FROM", "PRAGMA", "EXPLAIN",
		"SHOW", "DESCRIBE", "SUMMARIZE":
		return StmtSelect
	case "INSERT", "REPLACE":
		return StmtInsert
	case "UPDATE":
		return StmtUpdate
	case "DELETE":
		return StmtDelete
	case "CREATE", "DROP", "ALTER", "REINDEX", "TRUNCATE", "COMMENT":
		return StmtDDL
	case "BEGIN", "COMMIT", "END", "ROLLBACK", "SAVEPOINT", "RELEASE":
		return StmtTransaction
	default:
		return StmtOther
	}
}

// ReturnsRows reports whether stmt should be run as a query. DML only
// returns rows with a RETURNING clause; DDL and transaction control never do.
// Anything unrecognized is treated as a query.
func ReturnsRows(stmt string) bool {
	switch Classify(stmt) {
	case StmtInsert, StmtUpdate, StmtDelete:
		return returningRe.MatchString(codeOnly(stmt))
	case StmtDDL, StmtTransaction:
		return false
	default:
		switch FirstKeyword(stmt) {
		case "ATTACH", "DETACH", "VACUUM", "ANALYZE", "SET", "USE", "INSTALL", "LOAD", "CHECKPOINT":
			return false
		}
		return true
	}
}

// FirstKeyword returns the first word of stmt, upper-cased.
func FirstKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := 0
			for end < len(s) && isWordChar(s[end]) {
				end++
			}
			return strings.ToUpper(s[:end])
		}
	}
}
