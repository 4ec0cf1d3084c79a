package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dbunify/internal/ddl"
	"dbunify/internal/domain"
)

// DefaultTableName is the table a SQL export creates.
const DefaultTableName = "query_results"

// Exporter renders result sets.
type Exporter struct {
	tableName string
}

// NewExporter creates an Exporter whose SQL scripts create tableName. An
// empty name means DefaultTableName.
func NewExporter(tableName string) *Exporter {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &Exporter{tableName: tableName}
}

// Export renders rs in format f. CSV and JSON need at least a column list;
// SQL needs at least one row. Anything less yields a *domain.ExportError.
func (e *Exporter) Export(rs *domain.ResultSet, f Format) (string, error) {
	switch f {
	case FormatCSV:
		return e.csv(rs)
	case FormatJSON:
		return e.json(rs)
	case FormatSQL:
		return e.sql(rs)
	default:
		return "", domain.ErrExport("unsupported format %q", f)
	}
}

func (e *Exporter) csv(rs *domain.ResultSet) (string, error) {
	if rs == nil || len(rs.Columns) == 0 {
		return "", domain.ErrExport("nothing to export: result has no columns")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rs.Columns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			v, _ := row.Get(col)
			record[i] = text(v)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

// json writes an array of objects. Keys follow each row's own column order,
// which map-based encoding would lose.
func (e *Exporter) json(rs *domain.ResultSet) (string, error) {
	if rs == nil || len(rs.Columns) == 0 {
		return "", domain.ErrExport("nothing to export: result has no columns")
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range row.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return "", fmt.Errorf("encode column %q: %w", col, err)
			}
			val, err := json.Marshal(jsonValue(row.Values[j]))
			if err != nil {
				return "", fmt.Errorf("encode value of %q: %w", col, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("format json: %w", err)
	}
	out.WriteByte('\n')
	return out.String(), nil
}

// sql writes a CREATE TABLE with every column typed TEXT, then one INSERT
// per row. Missing and null values become NULL.
func (e *Exporter) sql(rs *domain.ResultSet) (string, error) {
	if rs.RowCount() == 0 {
		return "", domain.ErrExport("nothing to export: result has no rows")
	}

	table := ddl.QuoteIdentifier(e.tableName)
	defs := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		defs[i] = ddl.QuoteIdentifier(col) + " TEXT"
	}
	colList := ddl.QuoteIdentifiers(rs.Columns)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s);\n", table, strings.Join(defs, ", "))
	vals := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			v, ok := row.Get(col)
			if !ok || v == nil {
				vals[i] = "NULL"
				continue
			}
			vals[i] = ddl.QuoteLiteral(text(v))
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n", table, colList, strings.Join(vals, ", "))
	}
	return b.String(), nil
}

// text renders a normalized value as plain text. Null is empty.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat uses plain notation below 1e21 and exponent notation above,
// so whole numbers do not grow a fraction or an exponent.
func formatFloat(f float64) string {
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// jsonValue maps values JSON cannot represent to null.
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case []byte:
		return string(x)
	}
	return v
}

// Export renders rs with a default Exporter.
func Export(rs *domain.ResultSet, f Format) (string, error) {
	return NewExporter("").Export(rs, f)
}
