package datastore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schema is the set of columns an entity needs from a table. Column order in the live
// table does not matter; a Binding resolves names to positions once.
type Schema struct {
	columns []string
}

// NewSchema declares the columns of a table. The id column is always first for new tables.
func NewSchema(columns ...string) *Schema {
	cols := []string{IDColumn}
	for _, c := range columns {
		if c != IDColumn {
			cols = append(cols, c)
		}
	}
	return &Schema{columns: cols}
}

// Columns returns the header used when the table is created.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Bind validates a live header against the schema and builds the column index.
func (s *Schema) Bind(header []string) (*Binding, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, c := range s.columns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("datastore: header missing columns %s", strings.Join(missing, ", "))
	}
	return &Binding{width: len(header), index: index}, nil
}

// Binding maps column names to positions in one table's header.
type Binding struct {
	width int
	index map[string]int
}

// Reader wraps a row for named access.
func (b *Binding) Reader(row []string) RowReader {
	return RowReader{b: b, row: row}
}

// NewRow starts an empty row sized to the header.
func (b *Binding) NewRow() *RowWriter {
	return &RowWriter{b: b, cells: make([]string, b.width)}
}

// Rewrite starts from an existing row so columns outside the schema survive a whole-row overwrite.
func (b *Binding) Rewrite(row []string) *RowWriter {
	cells := make([]string, b.width)
	copy(cells, row)
	return &RowWriter{b: b, cells: cells}
}

// RowReader reads cells by column name.
type RowReader struct {
	b   *Binding
	row []string
}

// String returns the trimmed cell, or "" when the row is short.
func (r RowReader) String(col string) string {
	i, ok := r.b.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

// Int parses an integer cell; empty cells read as zero.
func (r RowReader) Int(col string) (int, error) {
	v := r.String(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return n, nil
}

// Bool parses TRUE/FALSE style cells; empty reads as false.
func (r RowReader) Bool(col string) bool {
	v, err := strconv.ParseBool(r.String(col))
	return err == nil && v
}

// Time parses an RFC3339 cell; empty reads as the zero time.
func (r RowReader) Time(col string) (time.Time, error) {
	v := r.String(col)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", col, err)
	}
	return t, nil
}

// RowWriter fills cells by column name.
type RowWriter struct {
	b     *Binding
	cells []string
}

// Set writes a string cell; unknown columns are ignored because Bind already validated the schema.
func (w *RowWriter) Set(col, value string) *RowWriter {
	if i, ok := w.b.index[col]; ok {
		w.cells[i] = value
	}
	return w
}

func (w *RowWriter) SetInt(col string, value int) *RowWriter {
	return w.Set(col, strconv.Itoa(value))
}

func (w *RowWriter) SetBool(col string, value bool) *RowWriter {
	return w.Set(col, strings.ToUpper(strconv.FormatBool(value)))
}

// SetTime writes RFC3339 UTC; the zero time writes an empty cell.
func (w *RowWriter) SetTime(col string, value time.Time) *RowWriter {
	if value.IsZero() {
		return w.Set(col, "")
	}
	return w.Set(col, value.UTC().Format(time.RFC3339))
}

// Cells returns the encoded row.
func (w *RowWriter) Cells() []string {
	return append([]string(nil), w.cells...)
}
