package tlk

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	t := New(English)
	t.Append(
		TextEntry("Bad Strref"),
		Entry{Flags: FlagText | FlagSound | FlagSoundLength, SoundResRef: "vs_fighter", SoundLength: 1.5, Text: "Résumé"},
		Entry{},
	)
	return t
}

func TestWriteRead(t *testing.T) {
	t.Parallel()

	src := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, src.Write(&buf))

	raw := buf.Bytes()
	assert.Equal(t, "TLK V3.0", string(raw[:8]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(raw[12:]))
	assert.Equal(t, uint32(20+3*40), binary.LittleEndian.Uint32(raw[16:]))
	for i, want := range []struct{ off, length uint32 }{{0, 10}, {10, 6}, {16, 0}} {
		entry := raw[20+i*40:]
		assert.Equal(t, want.off, binary.LittleEndian.Uint32(entry[28:]), "entry %d offset", i)
		assert.Equal(t, want.length, binary.LittleEndian.Uint32(entry[32:]), "entry %d length", i)
	}

	got, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, English, got.Language)
	assert.Equal(t, src.Entries(), got.Entries())
	assert.Equal(t, "Résumé", got.Entry(1).Text, "cp1252 text decodes to UTF-8")
}

func TestRead_BadHeader(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader([]byte("TLK V4.0")))
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = Read(bytes.NewReader([]byte("TLK V3.0\x00\x00\x00\x00\xff\x00\x00\x00\x14\x00\x00\x00")))
	require.ErrorIs(t, err, ErrBadHeader, "entry count larger than the file")
}

func TestFileHelpers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.tlk"), filepath.Join(dir, "b.tlk")
	require.NoError(t, sampleTable().WriteFile(a))

	second := New(English)
	second.Append(TextEntry("patched 0"), TextEntry("patched 1"))
	require.NoError(t, second.WriteFile(b))

	n, err := Size(a)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dest := filepath.Join(dir, "joined", "patch.tlk")
	require.NoError(t, Concat(a, b, dest))
	joined, err := ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, 5, joined.Len())
	assert.Equal(t, "Bad Strref", joined.Entry(0).Text)
	assert.Equal(t, "patched 1", joined.Entry(4).Text)
}

func TestEncoding(t *testing.T) {
	t.Parallel()

	for _, lang := range []uint32{English, Polish, Korean, ChineseTraditional, ChineseSimplified, Japanese} {
		assert.NotNil(t, Encoding(lang))
	}
	assert.NotEqual(t, Encoding(English), Encoding(Polish))

	pl := New(Polish)
	pl.Append(TextEntry("Zażółć"))
	var buf bytes.Buffer
	require.NoError(t, pl.Write(&buf))
	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Zażółć", back.Entry(0).Text)
}

func TestSnapshotChanged(t *testing.T) {
	t.Parallel()

	tbl := sampleTable()
	assert.Equal(t, []int{0, 1, 2}, tbl.Changed(), "no baseline reports everything")

	tbl.Snapshot()
	assert.Empty(t, tbl.Changed())

	tbl.Set(1, TextEntry("new text"))
	tbl.Set(4, TextEntry("grown"))
	assert.Equal(t, 5, tbl.Len())
	assert.Equal(t, []int{1, 3, 4}, tbl.Changed())
}
