package domain

// Row is one result row. Columns is the column list of the statement that
// produced it, so rows of one ResultSet may have different keys.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// ResultSet is the accumulated output of a batch. Columns is the union of all
// producing statements' columns in first-seen order.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// RowCount returns the number of accumulated rows.
func (rs *ResultSet) RowCount() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// AddColumns merges cols into the column union.
func (rs *ResultSet) AddColumns(cols []string) {
	for _, c := range cols {
		if !containsString(rs.Columns, c) {
			rs.Columns = append(rs.Columns, c)
		}
	}
}

// Append merges other's columns and rows after the existing ones.
func (rs *ResultSet) Append(other *ResultSet) {
	if other == nil {
		return
	}
	rs.AddColumns(other.Columns)
	rs.Rows = append(rs.Rows, other.Rows...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
