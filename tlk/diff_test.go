package tlk

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDiff(t *testing.T, path string, texts map[int]string) {
	t.Helper()
	tbl := New(English)
	indices := make([]int, 0, len(texts))
	for i, s := range texts {
		tbl.Set(i, TextEntry(s))
		indices = append(indices, i)
	}
	require.NoError(t, tbl.WriteDiffFile(path, indices))
}

func TestDiffRoundTrip(t *testing.T) {
	t.Parallel()

	entries := []DiffEntry{
		{Index: 2, Entry: TextEntry("two")},
		{Index: 9, Entry: Entry{Flags: FlagSound, SoundResRef: "snd", SoundLength: 0.5, Text: "ünïcode"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, entries))
	got, err := ReadDiff(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	_, err = ReadDiff(bytes.NewReader([]byte("TLU V2.0")))
	require.ErrorIs(t, err, ErrBadDiff)
	_, err = ReadDiff(bytes.NewReader([]byte("TLU V1.0\x01\x00\x00\x00")))
	require.ErrorIs(t, err, ErrBadDiff, "truncated entry")
}

func TestMergeDiff_GrowsTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "diff.tlu")
	writeDiff(t, path, map[int]string{1: "one", 5: "five"})

	tbl := New(English)
	tbl.Append(TextEntry("zero"), TextEntry("old one"))
	applied, err := tbl.MergeDiff(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, applied)
	assert.Equal(t, 6, tbl.Len())
	assert.Equal(t, "one", tbl.Entry(1).Text)
	assert.Equal(t, "five", tbl.Entry(5).Text)
	assert.Equal(t, "zero", tbl.Entry(0).Text)
}

func TestMergeTwoDiffs_SortedUnion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	older, newer := filepath.Join(dir, "older.tlu"), filepath.Join(dir, "newer.tlu")
	writeDiff(t, older, map[int]string{1: "a1", 3: "a3", 5: "a5"})
	writeDiff(t, newer, map[int]string{3: "b3", 4: "b4"})

	tbl := New(English)
	first, err := tbl.MergeDiff(older)
	require.NoError(t, err)
	second, err := tbl.MergeDiff(newer)
	require.NoError(t, err)

	union := UnionIndices(first, second)
	assert.Equal(t, []int{1, 3, 4, 5}, union)

	joined := filepath.Join(dir, "joined.tlu")
	require.NoError(t, tbl.WriteDiffFile(joined, union))

	check := New(English)
	applied, err := check.MergeDiff(joined)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 5}, applied)
	assert.Equal(t, "b3", check.Entry(3).Text, "the later diff wins")
	assert.Equal(t, "a5", check.Entry(5).Text)
}

func TestDiff_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	tbl := New(English)
	tbl.Append(TextEntry("x"))
	_, err := tbl.Diff([]int{0, 1})
	require.Error(t, err)

	entries, err := tbl.Diff([]int{0, 0})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteDiff_RejectsUnencodable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry DiffEntry
		want  error
	}{
		{"negative index", DiffEntry{Index: -1, Entry: TextEntry("x")}, ErrBadDiff},
		{"oversized text", DiffEntry{Index: 2, Entry: TextEntry(strings.Repeat("a", maxDiffText+1))}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := WriteDiff(&buf, []DiffEntry{{Index: 0, Entry: TextEntry("ok")}, tt.entry})
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, buf.Len(), "nothing is written on failure")
		})
	}
}
