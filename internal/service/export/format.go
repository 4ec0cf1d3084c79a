// Package export renders result sets as CSV, JSON or a SQL script.
package export

import (
	"strings"

	"dbunify/internal/domain"
)

// Format is an export text format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatSQL  Format = "sql"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatSQL:
		return f, nil
	default:
		return "", domain.ErrValidation("unsupported export format %q: must be one of csv, json, sql", s)
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatSQL:
		return "application/sql"
	default:
		return "text/plain"
	}
}

// DefaultFileName is the suggested download name for an export.
func DefaultFileName(f Format) string {
	return "query_result." + f.Extension()
}
