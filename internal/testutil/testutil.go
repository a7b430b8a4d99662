// Package testutil builds binary fixtures and package directories for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// BIFEntry holds data for one variable resource of a test archive.
type BIFEntry struct {
	KeyID    uint32
	Reserved uint32 // written only for the V1.1 layout
	TypeTag  uint32
	Data     []byte
}

// BuildBIF encodes a BIF archive. magic selects the index layout
// ("BIFFV1  " or "BIFFV1.1"). The index follows the header and entry data
// follows the index.
func BuildBIF(tb testing.TB, magic string, entries []BIFEntry) []byte {
	tb.Helper()
	if len(magic) != 8 {
		tb.Fatalf("testutil: magic must be 8 bytes, got %q", magic)
	}

	entrySize := 16
	if magic == "BIFFV1.1" {
		entrySize = 20
	}
	const headerSize = 20
	dataStart := headerSize + entrySize*len(entries)

	var buf bytes.Buffer
	buf.WriteString(magic)
	put32(&buf, uint32(len(entries)))
	put32(&buf, 0)
	put32(&buf, headerSize)

	off := dataStart
	for _, e := range entries {
		put32(&buf, e.KeyID)
		if entrySize == 20 {
			put32(&buf, e.Reserved)
		}
		put32(&buf, uint32(off))
		put32(&buf, uint32(len(e.Data)))
		put32(&buf, e.TypeTag)
		off += len(e.Data)
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// KeyEntry maps a resource to a slot of one of the key's archives.
type KeyEntry struct {
	ResRef string
	Type   uint16
	BIF    int
	Slot   int
}

// BuildKey encodes a KEY V1 file naming bifs, which are paths relative to
// the key file using backslash separators as the game does.
func BuildKey(tb testing.TB, bifs []string, keys []KeyEntry) []byte {
	tb.Helper()

	const headerSize = 64
	fileTable := headerSize
	namesStart := fileTable + 12*len(bifs)
	namesLen := 0
	for _, b := range bifs {
		namesLen += len(b) + 1
	}
	keyTable := namesStart + namesLen

	var buf bytes.Buffer
	buf.WriteString("KEY V1  ")
	put32(&buf, uint32(len(bifs)))
	put32(&buf, uint32(len(keys)))
	put32(&buf, uint32(fileTable))
	put32(&buf, uint32(keyTable))
	put32(&buf, 125) // build year since 1900
	put32(&buf, 1)
	buf.Write(make([]byte, 32))

	nameOff := namesStart
	for _, b := range bifs {
		put32(&buf, 0)
		put32(&buf, uint32(nameOff))
		put16(&buf, uint16(len(b)+1))
		put16(&buf, 1)
		nameOff += len(b) + 1
	}
	for _, b := range bifs {
		buf.WriteString(b)
		buf.WriteByte(0)
	}
	for _, k := range keys {
		buf.Write(resRef(k.ResRef))
		put16(&buf, k.Type)
		put32(&buf, uint32(k.BIF)<<20|uint32(k.Slot))
	}
	return buf.Bytes()
}

// ERFEntry holds one resource of a test container archive.
type ERFEntry struct {
	ResRef string
	Type   uint16
	Data   []byte
}

// BuildERF encodes an ERF V1.0 container with the given 4-byte file type
// ("HAK ", "MOD ", "ERF ").
func BuildERF(tb testing.TB, fileType string, entries []ERFEntry) []byte {
	tb.Helper()
	if len(fileType) != 4 {
		tb.Fatalf("testutil: file type must be 4 bytes, got %q", fileType)
	}

	const headerSize = 160
	keyList := headerSize
	resList := keyList + 24*len(entries)
	dataStart := resList + 8*len(entries)

	var buf bytes.Buffer
	buf.WriteString(fileType)
	buf.WriteString("V1.0")
	put32(&buf, 0) // language count
	put32(&buf, 0) // localized string size
	put32(&buf, uint32(len(entries)))
	put32(&buf, headerSize)
	put32(&buf, uint32(keyList))
	put32(&buf, uint32(resList))
	put32(&buf, 125)
	put32(&buf, 1)
	put32(&buf, 0xFFFFFFFF)
	buf.Write(make([]byte, 116))

	for i, e := range entries {
		buf.Write(resRef(e.ResRef))
		put32(&buf, uint32(i))
		put16(&buf, e.Type)
		put16(&buf, 0)
	}
	off := dataStart
	for _, e := range entries {
		put32(&buf, uint32(off))
		put32(&buf, uint32(len(e.Data)))
		off += len(e.Data)
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("testutil: mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("testutil: write %s: %v", path, err)
	}
	return path
}

// WriteFiles writes each name/content pair under dir. Names may contain
// forward slashes to create subdirectories.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		WriteFile(tb, dir, filepath.FromSlash(name), []byte(content))
	}
}

// TwoDA returns 2DA V2.0 text with the given header line and rows.
func TwoDA(header string, rows ...string) string {
	var b strings.Builder
	b.WriteString("2DA V2.0\n\n")
	b.WriteString(header)
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return b.String()
}

func resRef(name string) []byte {
	b := make([]byte, 16)
	copy(b, name)
	return b
}

func put16(buf *bytes.Buffer, v uint16) {
	buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func put32(buf *bytes.Buffer, v uint32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}
