package patcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meigma/nwnpatch/twoda"
)

var (
	// ErrRowOutOfRange is returned when an absolute row names a base row
	// that does not exist.
	ErrRowOutOfRange = errors.New("patcher: absolute row out of range")

	// ErrBadMarker is returned for absolute markers that are not a
	// non-negative integer.
	ErrBadMarker = errors.New("patcher: bad absolute marker")
)

// TLKKey is the OffsetMap key holding the string table offset.
const TLKKey = "tlk"

// OffsetMap maps a lowercased table filename, or TLKKey, to the number of
// rows patch references into it are shifted by.
type OffsetMap map[string]int

// shiftColumn adds shift to every integer value of column col.
//
// Values starting with "*" are left alone. Values starting with "!" are
// never shifted; with stripAbsolute the marker is removed. Other values
// that are not integers are left unchanged and logged.
func shiftColumn(log *slog.Logger, t *twoda.Table, col, shift int, stripAbsolute bool) {
	for i := range t.Len() {
		v := t.Value(i, col)
		switch {
		case strings.HasPrefix(v, "*"):
		case strings.HasPrefix(v, "!"):
			if stripAbsolute {
				t.SetValue(i, col, v[1:])
			}
		default:
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Warn("reference is not an integer", "row", i, "column", col, "value", v)
				continue
			}
			t.SetValue(i, col, strconv.Itoa(n+shift))
		}
	}
}

// shiftReferences applies every reference of refs to t using offsets.
func shiftReferences(log *slog.Logger, t *twoda.Table, refs []Reference, offsets OffsetMap, stripAbsolute bool) {
	for _, ref := range refs {
		if ref.Column >= t.Columns() {
			log.Warn("reference column out of range", "column", ref.Column, "columns", t.Columns())
			continue
		}
		shift, ok := offsets[ref.Target]
		if !ok {
			log.Warn("no offset for reference target", "target", ref.Target, "column", ref.Column)
		}
		log.Debug("shifting references", "column", ref.Column, "target", ref.Target, "shift", shift)
		shiftColumn(log, t, ref.Column, shift, stripAbsolute)
	}
}

// writeConstants writes one constant per row of t whose label and symbol
// are not placeholders. Values count non-absolute rows from offset.
func writeConstants(w io.Writer, t *twoda.Table, col, offset int) (int, error) {
	if col >= t.Columns() {
		return 0, fmt.Errorf("constant column %d out of range", col)
	}
	pos, written := 0, 0
	for i := range t.Len() {
		label := t.Value(i, 0)
		kind := twoda.KindOf(label)
		if kind == twoda.Absolute {
			continue
		}
		symbol := t.Value(i, col)
		if kind != twoda.Placeholder && !strings.HasPrefix(symbol, "*") {
			if _, err := fmt.Fprintf(w, "const int %s = %d;\n", symbol, offset+pos); err != nil {
				return written, err
			}
			written++
		}
		pos++
	}
	return written, nil
}

// overwriteAbsolute replaces the base row named by every absolute row of
// patch and removes those rows from patch.
func overwriteAbsolute(base, patch *twoda.Table) error {
	for i := 0; i < patch.Len(); {
		label := patch.Value(i, 0)
		if twoda.KindOf(label) != twoda.Absolute {
			i++
			continue
		}
		target, ok := twoda.AbsoluteTarget(label)
		if !ok {
			return fmt.Errorf("%w: %q", ErrBadMarker, label)
		}
		if target >= base.Len() {
			return fmt.Errorf("%w: row %d, table has %d rows", ErrRowOutOfRange, target, base.Len())
		}
		row := patch.Row(i)
		row[0] = strconv.Itoa(target)
		base.SetRow(target, row)
		patch.RemoveRow(i)
	}
	return nil
}

// mergeInto pads base to minRows, applies the absolute rows of patch and
// appends the rest renumbered. It returns the first and last row numbers
// assigned to the appended rows.
func mergeInto(base, patch *twoda.Table, minRows int) (first, last int, err error) {
	base.PadTo(minRows)
	first = base.Len()
	last = first + patch.NonAbsoluteLen() - 1
	if err := overwriteAbsolute(base, patch); err != nil {
		return 0, 0, err
	}
	base.Append(patch, false)
	return first, last, nil
}

// offsetFor returns the apply offset of a base table.
func offsetFor(base *twoda.Table, minRows int) int {
	if base == nil {
		return 0
	}
	return max(base.Len(), minRows)
}
