// Package dataset implements the tabular value threaded between
// recipe steps: named, ordered columns over an ordered sequence of
// rows. Column names are unique within a dataset. A step receives
// the dataset, may add, mutate or remove columns, and returns a
// (possibly new) dataset; nothing here is safe for concurrent
// mutation.
package dataset

import (
	"fmt"

	"github.com/skillet-data/skillet/internal/errs"
)

// Dataset is a table with ordered columns and ordered rows.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// New creates an empty dataset with the given column order.
func New(columns ...string) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if _, dup := d.index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", errs.ErrColumnExists, c)
		}
		d.index[c] = len(d.columns)
		d.columns = append(d.columns, c)
	}
	return d, nil
}

// FromRows builds a dataset from row maps using an explicit column
// order. Missing keys become nil values.
func FromRows(columns []string, rows []map[string]interface{}) (*Dataset, error) {
	d, err := New(columns...)
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		row := make([]interface{}, len(columns))
		for i, c := range columns {
			row[i] = m[c]
		}
		d.rows = append(d.rows, row)
	}
	return d, nil
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return len(d.rows) }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Value returns the cell at (row, column).
func (d *Dataset) Value(row int, column string) (interface{}, error) {
	i, ok := d.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, column)
	}
	if row < 0 || row >= len(d.rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", row, len(d.rows))
	}
	return d.rows[row][i], nil
}

// SetValue sets the cell at (row, column).
func (d *Dataset) SetValue(row int, column string, value interface{}) error {
	i, ok := d.index[column]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrColumnNotFound, column)
	}
	if row < 0 || row >= len(d.rows) {
		return fmt.Errorf("row %d out of range (%d rows)", row, len(d.rows))
	}
	d.rows[row][i] = value
	return nil
}

// Column returns the values of one column in row order.
func (d *Dataset) Column(name string) ([]interface{}, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, name)
	}
	out := make([]interface{}, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, nil
}

// RowMap materializes one row as a column→value map.
func (d *Dataset) RowMap(row int) map[string]interface{} {
	m := make(map[string]interface{}, len(d.columns))
	for i, c := range d.columns {
		m[c] = d.rows[row][i]
	}
	return m
}

// SetRowFromMap replaces a row's values from a map. Keys that are
// not existing columns become new columns appended in sorted
// insertion order of first appearance.
func (d *Dataset) SetRowFromMap(row int, m map[string]interface{}) error {
	if row < 0 || row >= len(d.rows) {
		return fmt.Errorf("row %d out of range (%d rows)", row, len(d.rows))
	}
	for i, c := range d.columns {
		if v, ok := m[c]; ok {
			d.rows[row][i] = v
		}
	}
	return nil
}

// AppendRow appends one row; the value count must match the column
// count.
func (d *Dataset) AppendRow(values []interface{}) error {
	if len(values) != len(d.columns) {
		return fmt.Errorf("%w: row has %d values, dataset has %d columns", errs.ErrSchemaMismatch, len(values), len(d.columns))
	}
	row := make([]interface{}, len(values))
	copy(row, values)
	d.rows = append(d.rows, row)
	return nil
}

// AddColumn appends a new column. values may be nil (all cells nil)
// or must match the row count.
func (d *Dataset) AddColumn(name string, values []interface{}) error {
	if _, dup := d.index[name]; dup {
		return fmt.Errorf("%w: %q", errs.ErrColumnExists, name)
	}
	if values != nil && len(values) != len(d.rows) {
		return fmt.Errorf("%w: %d values for %d rows", errs.ErrRowCountMismatch, len(values), len(d.rows))
	}
	d.index[name] = len(d.columns)
	d.columns = append(d.columns, name)
	for r := range d.rows {
		var v interface{}
		if values != nil {
			v = values[r]
		}
		d.rows[r] = append(d.rows[r], v)
	}
	return nil
}

// RenameColumn renames a column in place, preserving order.
func (d *Dataset) RenameColumn(old, new string) error {
	i, ok := d.index[old]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrColumnNotFound, old)
	}
	if old == new {
		return nil
	}
	if _, dup := d.index[new]; dup {
		return fmt.Errorf("%w: %q", errs.ErrColumnExists, new)
	}
	d.columns[i] = new
	delete(d.index, old)
	d.index[new] = i
	return nil
}

// DropColumn removes a column and its values.
func (d *Dataset) DropColumn(name string) error {
	i, ok := d.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrColumnNotFound, name)
	}
	d.columns = append(d.columns[:i], d.columns[i+1:]...)
	delete(d.index, name)
	for c, idx := range d.index {
		if idx > i {
			d.index[c] = idx - 1
		}
	}
	for r := range d.rows {
		d.rows[r] = append(d.rows[r][:i], d.rows[r][i+1:]...)
	}
	return nil
}

// FilterRows returns a new dataset containing only rows for which
// keep returns true, preserving row order.
func (d *Dataset) FilterRows(keep func(row int) bool) *Dataset {
	out := d.emptyLike()
	for r := range d.rows {
		if keep(r) {
			row := make([]interface{}, len(d.rows[r]))
			copy(row, d.rows[r])
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Append appends another dataset's rows (row-wise union). Column
// sets must match exactly; other's columns may be in any order.
func (d *Dataset) Append(other *Dataset) error {
	if len(other.columns) != len(d.columns) {
		return fmt.Errorf("%w: %d vs %d columns", errs.ErrSchemaMismatch, len(other.columns), len(d.columns))
	}
	remap := make([]int, len(d.columns))
	for i, c := range d.columns {
		j, ok := other.index[c]
		if !ok {
			return fmt.Errorf("%w: column %q missing from appended dataset", errs.ErrSchemaMismatch, c)
		}
		remap[i] = j
	}
	for _, srcRow := range other.rows {
		row := make([]interface{}, len(d.columns))
		for i, j := range remap {
			row[i] = srcRow[j]
		}
		d.rows = append(d.rows, row)
	}
	return nil
}

// Concat joins another dataset column-wise. Row counts must match
// and column names must be disjoint.
func (d *Dataset) Concat(other *Dataset) error {
	if len(other.rows) != len(d.rows) {
		return fmt.Errorf("%w: %d vs %d rows", errs.ErrRowCountMismatch, len(other.rows), len(d.rows))
	}
	for _, c := range other.columns {
		if _, dup := d.index[c]; dup {
			return fmt.Errorf("%w: %q on both sides of concatenate", errs.ErrColumnExists, c)
		}
	}
	for _, c := range other.columns {
		d.index[c] = len(d.columns)
		d.columns = append(d.columns, c)
	}
	for r := range d.rows {
		d.rows[r] = append(d.rows[r], other.rows[r]...)
	}
	return nil
}

// Join performs an inner join against other on the named key
// columns, which must exist on both sides. Left row order is
// preserved; right-side non-key columns are appended.
func (d *Dataset) Join(other *Dataset, on []string) (*Dataset, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("%w: join requires explicit key columns", errs.ErrConfigInvalid)
	}
	for _, k := range on {
		if !d.HasColumn(k) {
			return nil, fmt.Errorf("%w: join key %q (left)", errs.ErrColumnNotFound, k)
		}
		if !other.HasColumn(k) {
			return nil, fmt.Errorf("%w: join key %q (right)", errs.ErrColumnNotFound, k)
		}
	}
	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}

	var rightCols []string
	for _, c := range other.columns {
		if !isKey[c] {
			if d.HasColumn(c) {
				return nil, fmt.Errorf("%w: %q on both sides of join", errs.ErrColumnExists, c)
			}
			rightCols = append(rightCols, c)
		}
	}

	// Index the right side by key tuple; first match wins
	rightByKey := make(map[string]int, len(other.rows))
	for r := range other.rows {
		k := other.keyString(r, on)
		if _, seen := rightByKey[k]; !seen {
			rightByKey[k] = r
		}
	}

	out, err := New(append(d.Columns(), rightCols...)...)
	if err != nil {
		return nil, err
	}
	for r := range d.rows {
		rr, ok := rightByKey[d.keyString(r, on)]
		if !ok {
			continue
		}
		row := make([]interface{}, 0, len(out.columns))
		row = append(row, d.rows[r]...)
		for _, c := range rightCols {
			v, _ := other.Value(rr, c)
			row = append(row, v)
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Select returns a projection with the requested columns in the
// requested order.
func (d *Dataset) Select(columns []string) (*Dataset, error) {
	out, err := New(columns...)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := d.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, c)
		}
		idx[i] = j
	}
	for _, srcRow := range d.rows {
		row := make([]interface{}, len(columns))
		for i, j := range idx {
			row[i] = srcRow[j]
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := d.emptyLike()
	out.rows = make([][]interface{}, len(d.rows))
	for r, row := range d.rows {
		cp := make([]interface{}, len(row))
		copy(cp, row)
		out.rows[r] = cp
	}
	return out
}

func (d *Dataset) emptyLike() *Dataset {
	out := &Dataset{
		columns: make([]string, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
	}
	copy(out.columns, d.columns)
	for c, i := range d.index {
		out.index[c] = i
	}
	return out
}

func (d *Dataset) keyString(row int, on []string) string {
	k := ""
	for _, c := range on {
		v, _ := d.Value(row, c)
		k += fmt.Sprintf("%v\x1f", v)
	}
	return k
}
