package processing

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Table is an in-memory CSV dataset with a header row
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseTable reads a CSV document with a mandatory header row
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV document has no header row")
	}

	return &Table{
		Header: records[0],
		Rows:   records[1:],
	}, nil
}

// Encode writes the table as canonical CSV
func (t *Table) Encode(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// columnIndex returns the position of a named column, or -1
func (t *Table) columnIndex(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// Select returns a table restricted to the named columns, in the order given
func (t *Table) Select(columns []string) (*Table, error) {
	indices := make([]int, len(columns))
	for i, name := range columns {
		idx := t.columnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
		indices[i] = idx
	}

	selected := &Table{Header: append([]string(nil), columns...)}
	for _, row := range t.Rows {
		newRow := make([]string, len(indices))
		for i, idx := range indices {
			if idx < len(row) {
				newRow[i] = row[idx]
			}
		}
		selected.Rows = append(selected.Rows, newRow)
	}
	return selected, nil
}

// Aggregate computes a single statistic over a numeric column, returning a
// one-row table "column,stat,value"
func (t *Table) Aggregate(column, stat string) (*Table, error) {
	idx := t.columnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}

	values := make([]float64, 0, len(t.Rows))
	for i, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value %q in column %q at row %d", row[idx], column, i+1)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("column %q has no values to aggregate", column)
	}

	var result float64
	switch stat {
	case "mean":
		result = sum(values) / float64(len(values))
	case "sum":
		result = sum(values)
	case "min":
		result = math.Inf(1)
		for _, v := range values {
			result = math.Min(result, v)
		}
	case "max":
		result = math.Inf(-1)
		for _, v := range values {
			result = math.Max(result, v)
		}
	case "count":
		result = float64(len(values))
	default:
		return nil, fmt.Errorf("unknown statistic %q", stat)
	}

	return &Table{
		Header: []string{"column", "stat", "value"},
		Rows:   [][]string{{column, stat, formatFloat(result)}},
	}, nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
