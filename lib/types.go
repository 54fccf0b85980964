package sqlrunner

import "encoding/json"

// QueryResult is a struct that holds the result of a query
type QueryResult struct {
	// Columns is a slice of column names
	Columns []string `json:"columns"`
	// Rows is a slice of rows, each row is a slice of cells
	Rows [][]Cell `json:"rows"`
}

// Cell is a single value of a result row, rendered as text.
type Cell struct {
	Value string
	// Null reports whether the database returned NULL.
	Null bool
	// Numeric reports whether the value came from a numeric column or type.
	Numeric bool
}

// Len returns the number of rows.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Empty reports whether the result holds no rows.
func (r *QueryResult) Empty() bool {
	return r.Len() == 0
}

// Column returns the cells of the i-th column.
func (r *QueryResult) Column(i int) []Cell {
	cells := make([]Cell, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells = append(cells, row[i])
	}
	return cells
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Null {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Cell{Null: true}
		return nil
	}
	c.Null = false
	return json.Unmarshal(data, &c.Value)
}
