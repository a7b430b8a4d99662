// Package twoda implements the 2DA V2.0 text table format.
//
// A table has a header of column labels and rows of string cells. Cell 0
// of every row is the row label, which doubles as the row addressing
// marker used when patching:
//
//	!N   absolute: pins the row to base row N, never shifted
//	*... placeholder: no constant is generated, counts toward offsets
//	N    relative: the row's position among non-absolute rows
//
// Column indices used by this package count the label column as 0, so
// header label i describes column i+1.
package twoda

import (
	"slices"
	"strconv"
	"strings"
)

// Empty is the literal written for cells without a value.
const Empty = "****"

// Kind classifies a row by the marker in its label cell.
type Kind uint8

const (
	// Relative rows are renumbered and shifted when merged.
	Relative Kind = iota
	// Absolute rows carry a "!" marker naming a literal base row.
	Absolute
	// Placeholder rows carry a "*" marker.
	Placeholder
)

// KindOf classifies a label cell.
func KindOf(label string) Kind {
	switch {
	case strings.HasPrefix(label, "!"):
		return Absolute
	case strings.HasPrefix(label, "*"):
		return Placeholder
	default:
		return Relative
	}
}

// AbsoluteTarget returns the base row named by an absolute marker.
func AbsoluteTarget(label string) (int, bool) {
	if !strings.HasPrefix(label, "!") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(label[1:]))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Table is an in-memory 2DA table. The column count is fixed by the
// header; rows are padded or truncated to fit on insertion.
type Table struct {
	labels       []string
	rows         [][]string
	defaultValue string
}

// New returns an empty table with the given column labels.
func New(labels ...string) *Table {
	return &Table{labels: slices.Clone(labels)}
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := &Table{
		labels:       slices.Clone(t.labels),
		rows:         make([][]string, len(t.rows)),
		defaultValue: t.defaultValue,
	}
	for i, row := range t.rows {
		c.rows[i] = slices.Clone(row)
	}
	return c
}

// CloneHeader returns an empty table with t's labels and default.
func (t *Table) CloneHeader() *Table {
	return &Table{labels: slices.Clone(t.labels), defaultValue: t.defaultValue}
}

// Labels returns the column labels, excluding the row label column.
func (t *Table) Labels() []string { return slices.Clone(t.labels) }

// Columns returns the number of columns including the row label column.
func (t *Table) Columns() int { return len(t.labels) + 1 }

// Column returns the index of the column labelled name, compared
// case-insensitively, or -1.
func (t *Table) Column(name string) int {
	for i, l := range t.labels {
		if strings.EqualFold(l, name) {
			return i + 1
		}
	}
	return -1
}

// Default returns the table's DEFAULT value, or "" when unset.
func (t *Table) Default() string { return t.defaultValue }

// SetDefault sets the DEFAULT value written on the second line.
func (t *Table) SetDefault(v string) { t.defaultValue = v }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// NonAbsoluteLen returns the number of rows that are not absolute.
func (t *Table) NonAbsoluteLen() int {
	n := 0
	for _, row := range t.rows {
		if KindOf(row[0]) != Absolute {
			n++
		}
	}
	return n
}

// Value returns the cell at row, col.
func (t *Table) Value(row, col int) string { return t.rows[row][col] }

// SetValue replaces the cell at row, col.
func (t *Table) SetValue(row, col int, v string) { t.rows[row][col] = v }

// Row returns a copy of row i.
func (t *Table) Row(i int) []string { return slices.Clone(t.rows[i]) }

// EmptyRow returns a row of Empty cells sized to the table.
func (t *Table) EmptyRow() []string {
	row := make([]string, t.Columns())
	for i := range row {
		row[i] = Empty
	}
	return row
}

// fit pads cells with Empty or truncates them to the column count.
func (t *Table) fit(cells []string) []string {
	row := t.EmptyRow()
	copy(row, cells)
	for i, c := range row {
		if c == "" {
			row[i] = Empty
		}
	}
	return row
}

// AppendRow appends a copy of cells fitted to the column count.
func (t *Table) AppendRow(cells []string) {
	t.rows = append(t.rows, t.fit(cells))
}

// SetRow replaces row i with a copy of cells fitted to the column count.
func (t *Table) SetRow(i int, cells []string) {
	t.rows[i] = t.fit(cells)
}

// RemoveRow deletes row i.
func (t *Table) RemoveRow(i int) {
	t.rows = slices.Delete(t.rows, i, i+1)
}

// PadTo appends empty rows until the table has n rows. Each new row's
// label is its own row number.
func (t *Table) PadTo(n int) {
	for i := t.Len(); i < n; i++ {
		row := t.EmptyRow()
		row[0] = strconv.Itoa(i)
		t.rows = append(t.rows, row)
	}
}

// Append copies the rows of src onto t, matching columns by position.
//
// With keepMarkers false every row is renumbered to its new position in t.
// With keepMarkers true absolute and placeholder labels are kept verbatim
// and relative rows are numbered by their position among t's non-absolute
// rows, so the result can itself be merged later.
func (t *Table) Append(src *Table, keepMarkers bool) {
	next := t.NonAbsoluteLen()
	for _, cells := range src.rows {
		row := t.fit(cells)
		kind := KindOf(row[0])
		switch {
		case !keepMarkers:
			row[0] = strconv.Itoa(len(t.rows))
		case kind == Relative:
			row[0] = strconv.Itoa(next)
		}
		if kind != Absolute {
			next++
		}
		t.rows = append(t.rows, row)
	}
}

// Equal reports whether t and o have the same labels and cells.
func (t *Table) Equal(o *Table) bool {
	if !slices.Equal(t.labels, o.labels) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.rows {
		if !slices.Equal(t.rows[i], o.rows[i]) {
			return false
		}
	}
	return true
}
