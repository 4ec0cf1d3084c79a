package unify

import (
	"context"

	"dbunify/internal/domain"
)

// Extractor reads table definitions and columns from a source catalog.
type Extractor struct {
	engine domain.Engine
}

// NewExtractor creates an Extractor for sources opened by eng.
func NewExtractor(eng domain.Engine) *Extractor {
	return &Extractor{engine: eng}
}

// Extract returns the user tables of src in creation order. Any catalog
// failure is reported as a *domain.SchemaReadError for that source.
func (x *Extractor) Extract(ctx context.Context, src domain.SourceDatabase) ([]domain.SourceTable, error) {
	catalog, err := x.engine.ListTables(ctx, src.Conn)
	if err != nil {
		return nil, &domain.SchemaReadError{Source: src.Name, Err: err}
	}

	tables := make([]domain.SourceTable, 0, len(catalog))
	for _, ct := range catalog {
		cols, err := x.engine.ListColumns(ctx, src.Conn, ct.Name)
		if err != nil {
			return nil, &domain.SchemaReadError{Source: src.Name, Err: err}
		}
		tables = append(tables, domain.SourceTable{
			Name:      ct.Name,
			CreateSQL: ct.CreateSQL,
			Columns:   cols,
		})
	}
	return tables, nil
}
