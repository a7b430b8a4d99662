package tlk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/internal/fsutil"
	"github.com/meigma/nwnpatch/internal/sizing"
)

// ErrBadDiff is returned for malformed diff input.
var ErrBadDiff = errors.New("tlk: bad diff")

// DiffMagic starts every diff file.
const DiffMagic = "TLU V1.0"

// DiffEntry is one replaced or added entry of a diff.
type DiffEntry struct {
	Index int
	Entry Entry
}

// maxDiffText bounds a single diff string.
const maxDiffText = 1 << 20

// ReadDiff decodes a diff. Text is stored as UTF-8.
func ReadDiff(r io.Reader) ([]DiffEntry, error) {
	d := binio.NewDecoder(bufio.NewReader(r))
	m, err := d.Bytes(len(DiffMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDiff, err)
	}
	if string(m) != DiffMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadDiff, m)
	}
	count, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDiff, err)
	}

	var out []DiffEntry
	for i := range count {
		de, err := readDiffEntry(d)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadDiff, i, err)
		}
		out = append(out, de)
	}
	return out, nil
}

func readDiffEntry(d *binio.Decoder) (DiffEntry, error) {
	var de DiffEntry
	idx, err := d.Uint32()
	if err != nil {
		return de, err
	}
	de.Index = int(idx)
	e := &de.Entry
	if e.Flags, err = d.Uint32(); err != nil {
		return de, err
	}
	if e.SoundResRef, err = d.FixedString(resRefSize); err != nil {
		return de, err
	}
	if e.VolumeVariance, err = d.Uint32(); err != nil {
		return de, err
	}
	if e.PitchVariance, err = d.Uint32(); err != nil {
		return de, err
	}
	if e.SoundLength, err = d.Float32(); err != nil {
		return de, err
	}
	n, err := d.Uint32()
	if err != nil {
		return de, err
	}
	if n > maxDiffText {
		return de, fmt.Errorf("text length %d too large", n)
	}
	text, err := d.Bytes(int(n))
	if err != nil {
		return de, err
	}
	e.Text = string(text)
	return de, nil
}

// WriteDiff encodes entries in the given order.
func WriteDiff(w io.Writer, entries []DiffEntry) error {
	count, err := sizing.Uint32(len(entries), ErrTooLarge)
	if err != nil {
		return err
	}
	indices := make([]uint32, len(entries))
	for i, de := range entries {
		if indices[i], err = sizing.Uint32(de.Index, ErrBadDiff); err != nil {
			return fmt.Errorf("%w: index %d", err, de.Index)
		}
		if len(de.Entry.Text) > maxDiffText {
			return fmt.Errorf("%w: index %d: text of %d bytes", ErrTooLarge, de.Index, len(de.Entry.Text))
		}
	}

	e := binio.NewEncoder(w)
	e.Bytes([]byte(DiffMagic))
	e.Uint32(count)
	for i, de := range entries {
		e.Uint32(indices[i])
		e.Uint32(de.Entry.Flags)
		e.FixedString(de.Entry.SoundResRef, resRefSize)
		e.Uint32(de.Entry.VolumeVariance)
		e.Uint32(de.Entry.PitchVariance)
		e.Float32(de.Entry.SoundLength)
		e.Uint32(uint32(len(de.Entry.Text))) //nolint:gosec // bounded by maxDiffText
		e.Bytes([]byte(de.Entry.Text))
	}
	return e.Err()
}

// ApplyDiff sets every diff entry on t, growing it as needed, and returns
// the indices applied in diff order.
func (t *Table) ApplyDiff(entries []DiffEntry) []int {
	indices := make([]int, 0, len(entries))
	for _, de := range entries {
		t.Set(de.Index, de.Entry)
		indices = append(indices, de.Index)
	}
	return indices
}

// MergeDiff reads the diff at path and applies it to t.
func (t *Table) MergeDiff(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := ReadDiff(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t.ApplyDiff(entries), nil
}

// Diff returns diff entries for indices, sorted and deduplicated.
func (t *Table) Diff(indices []int) ([]DiffEntry, error) {
	idx := slices.Clone(indices)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	out := make([]DiffEntry, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(t.entries) {
			return nil, fmt.Errorf("tlk: diff index %d out of range [0, %d)", i, len(t.entries))
		}
		out = append(out, DiffEntry{Index: i, Entry: t.entries[i]})
	}
	return out, nil
}

// WriteDiffFile atomically writes the diff of indices to path.
func (t *Table) WriteDiffFile(path string, indices []int) error {
	entries, err := t.Diff(indices)
	if err != nil {
		return err
	}
	return fsutil.WriteStream(path, func(w io.Writer) error {
		return WriteDiff(w, entries)
	})
}

// UnionIndices returns the sorted union of index sets without duplicates.
func UnionIndices(sets ...[]int) []int {
	var out []int
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
