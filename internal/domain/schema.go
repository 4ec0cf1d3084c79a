package domain

import (
	"fmt"
	"strings"
)

// UnknownSource is the provenance name of a unified table that no source declares.
const UnknownSource = "Unknown"

// ColumnDescriptor is one column of a table. DeclaredType is the raw type
// string from the source catalog.
type ColumnDescriptor struct {
	Name         string `json:"name"`
	DeclaredType string `json:"type"`
}

// CatalogTable is a user table as read from an engine catalog.
type CatalogTable struct {
	Name      string
	CreateSQL string // verbatim definition statement
}

// SourceTable is the Schema Extractor output for one table of a source.
type SourceTable struct {
	Name      string
	CreateSQL string
	Columns   []ColumnDescriptor
}

// TableDescriptor describes one table of the unified schema snapshot.
type TableDescriptor struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	SourceIndex int                `json:"-"`
	SourceName  string             `json:"database"`
	Columns     []ColumnDescriptor `json:"columns"`
	RowCount    int64              `json:"-"`
}

// TableID derives the snapshot identifier of a table from its provenance.
func TableID(sourceIndex int, name string) string {
	return fmt.Sprintf("%d-%s", sourceIndex, name)
}

// FindTable returns the descriptor with the given name (case-insensitive).
func FindTable(tables []TableDescriptor, name string) (TableDescriptor, bool) {
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableDescriptor{}, false
}

// SourceReport summarizes what one source contributed to a unification.
type SourceReport struct {
	Index         int
	Name          string
	TablesCreated int
	TablesReused  int
	TablesRenamed int
	TablesFailed  int
	RowsInserted  int64
	RowsIgnored   int64
	RowsFailed    int64
	SchemaError   error // non-nil when the source contributed nothing
}

// MergeReport is the per-source outcome of a unification, in registration order.
type MergeReport struct {
	Sources []SourceReport
}

// RowsFailed sums row-level insertion failures across all sources.
func (r MergeReport) RowsFailed() int64 {
	var n int64
	for _, s := range r.Sources {
		n += s.RowsFailed
	}
	return n
}

// SourceRef identifies the source a unified table is attributed to.
type SourceRef struct {
	Index int
	Name  string
}

// UnifiedDatabase is the live merged database plus the schema snapshot taken
// right after it was built. It is exclusively owned by whoever built it.
type UnifiedDatabase struct {
	Conn   Conn
	Tables []TableDescriptor
	Report MergeReport
	// Origins maps lower-cased table names to their provenance.
	Origins map[string]SourceRef
}

// Origin resolves the provenance of a table name. Tables no source declared
// resolve to index -1 and UnknownSource.
func (u *UnifiedDatabase) Origin(table string) SourceRef {
	if ref, ok := u.Origins[strings.ToLower(table)]; ok {
		return ref
	}
	return SourceRef{Index: -1, Name: UnknownSource}
}

// Close releases the underlying handle.
func (u *UnifiedDatabase) Close() error {
	if u == nil || u.Conn == nil {
		return nil
	}
	return u.Conn.Close()
}
