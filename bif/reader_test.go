package bif

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nwnpatch/internal/testutil"
	"github.com/meigma/nwnpatch/resource"
)

func sampleEntries() []testutil.BIFEntry {
	return []testutil.BIFEntry{
		{KeyID: 0, TypeTag: uint32(resource.Type2DA), Data: []byte("2DA V2.0\n\n   LABEL\n0  foo\n")},
		{KeyID: 1, TypeTag: uint32(resource.TypeNSS), Data: []byte("void main() {}")},
		{KeyID: 2, TypeTag: uint32(resource.TypeTXT), Data: nil},
	}
}

func writeBIF(t *testing.T, magic string, entries []testutil.BIFEntry) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "test.bif", testutil.BuildBIF(t, magic, entries))
}

func openBIF(t *testing.T, path string, opts ...Option) *Reader {
	t.Helper()
	r, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpen_Layouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		magic  string
		layout Layout
	}{
		{MagicV10, LayoutV10},
		{MagicV11, LayoutV11},
	}
	for _, tt := range tests {
		t.Run(tt.layout.String(), func(t *testing.T) {
			t.Parallel()
			entries := sampleEntries()
			r := openBIF(t, writeBIF(t, tt.magic, entries))

			assert.Equal(t, tt.layout, r.Layout())
			assert.Equal(t, len(entries), r.Len())
			assert.Zero(t, r.FixedCount())

			for i, want := range entries {
				size, err := r.EntrySize(i)
				require.NoError(t, err)
				assert.Equal(t, uint32(len(want.Data)), size)

				e, err := r.Entry(i)
				require.NoError(t, err)
				assert.Equal(t, i, e.Slot)
				assert.Equal(t, want.KeyID, e.KeyID)
				assert.Equal(t, want.TypeTag, e.TypeTag)

				data, err := r.ReadEntry(i)
				require.NoError(t, err)
				assert.Equal(t, want.Data, nilIfEmpty(data))
			}
		})
	}
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func TestOpen_UnsupportedHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "bad.bif", []byte("BIFFV2  \x00\x00\x00\x00\x00\x00\x00\x00\x14\x00\x00\x00"))
	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedHeader)

	short := testutil.WriteFile(t, dir, "short.bif", []byte("BIF"))
	_, err = Open(short)
	require.ErrorIs(t, err, ErrUnsupportedHeader)

	_, err = Open(filepath.Join(dir, "missing.bif"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReader_IndexOutOfRange(t *testing.T) {
	t.Parallel()

	r := openBIF(t, writeBIF(t, MagicV10, sampleEntries()))
	for _, i := range []int{-1, 3, 100} {
		_, err := r.EntrySize(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = r.Entry(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = r.OpenEntry(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = r.MapEntry(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = r.TransferEntry(i, io.Discard)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

func TestReader_EntryBounds(t *testing.T) {
	t.Parallel()

	data := testutil.BuildBIF(t, MagicV10, sampleEntries())
	// Grow the first entry's length past the end of the file.
	binary.LittleEndian.PutUint32(data[20+8:], uint32(len(data)))
	r := openBIF(t, testutil.WriteFile(t, t.TempDir(), "b.bif", data))

	size, err := r.EntrySize(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(data)), size)

	_, err = r.OpenEntry(0)
	require.ErrorIs(t, err, ErrEntryBounds)
	_, err = r.TransferEntry(0, io.Discard)
	require.ErrorIs(t, err, ErrEntryBounds)
}

func TestReader_ReservedFieldWarning(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	entries[1].Reserved = 7
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r := openBIF(t, writeBIF(t, MagicV11, entries), WithLogger(logger))

	e, err := r.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), e.Reserved)
	assert.Contains(t, logs.String(), "unknown value in bif index entry")

	data, err := r.ReadEntry(1)
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", string(data))
}

func TestReader_OpenEntryIsBounded(t *testing.T) {
	t.Parallel()

	r := openBIF(t, writeBIF(t, MagicV10, sampleEntries()))
	sr, err := r.OpenEntry(1)
	require.NoError(t, err)
	assert.Equal(t, int64(len("void main() {}")), sr.Size())

	data, err := io.ReadAll(sr)
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", string(data))
}

func TestReader_Mapping(t *testing.T) {
	t.Parallel()

	r, err := Open(writeBIF(t, MagicV10, sampleEntries()))
	require.NoError(t, err)

	m, err := r.MapEntry(1)
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", string(m.Bytes()))
	assert.Equal(t, len("void main() {}"), m.Len())

	empty, err := r.MapEntry(2)
	require.NoError(t, err)
	assert.Empty(t, empty.Bytes())
	require.NoError(t, empty.Close())
	require.NoError(t, empty.Close())

	var seen string
	require.NoError(t, r.WithMapping(0, func(data []byte) error {
		seen = string(data)
		return nil
	}))
	assert.Contains(t, seen, "2DA V2.0")

	require.NoError(t, r.Close())
	assert.Nil(t, m.Bytes(), "mappings are released when the reader closes")
	require.NoError(t, m.Close())
}

func TestReader_TransferEntry(t *testing.T) {
	t.Parallel()

	r := openBIF(t, writeBIF(t, MagicV11, sampleEntries()))

	var buf bytes.Buffer
	n, err := r.TransferEntry(1, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "void main() {}", buf.String())

	out := filepath.Join(t.TempDir(), "out.2da")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte("x"), 512), 0o644))
	require.NoError(t, r.TransferEntryToFile(0, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries()[0].Data, got)

	// Transfers move the file cursor; later reads must be unaffected.
	data, err := r.ReadEntry(1)
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", string(data))
}

func TestReader_Entries(t *testing.T) {
	t.Parallel()

	r := openBIF(t, writeBIF(t, MagicV10, sampleEntries()))
	var tags []uint32
	for i, e := range r.Entries() {
		assert.Equal(t, i, e.Slot)
		tags = append(tags, e.TypeTag)
	}
	assert.Equal(t, []uint32{uint32(resource.Type2DA), uint32(resource.TypeNSS), uint32(resource.TypeTXT)}, tags)

	count := 0
	for range r.Entries() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestReader_Closed(t *testing.T) {
	t.Parallel()

	r, err := Open(writeBIF(t, MagicV10, sampleEntries()))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Entry(0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.EntrySize(0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.MapEntry(0)
	require.ErrorIs(t, err, ErrClosed)
}
