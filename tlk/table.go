// Package tlk reads and writes TLK V3.0 string tables and the sparse
// ".tlu" diffs used to update them.
package tlk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/internal/fsutil"
	"github.com/meigma/nwnpatch/internal/sizing"
)

var (
	// ErrBadHeader is returned when input is not a TLK V3.0 table.
	ErrBadHeader = errors.New("tlk: bad header")

	// ErrTooLarge is returned by Write when a count or offset does not fit
	// its 32-bit field.
	ErrTooLarge = errors.New("tlk: table too large")
)

// Entry flags.
const (
	FlagText        uint32 = 0x1
	FlagSound       uint32 = 0x2
	FlagSoundLength uint32 = 0x4
)

// UserOffset is added to indices that refer into a user TLK rather than
// the game's dialog.tlk.
const UserOffset = 0x01000000

// Language identifiers.
const (
	English            uint32 = 0
	French             uint32 = 1
	German             uint32 = 2
	Italian            uint32 = 3
	Spanish            uint32 = 4
	Polish             uint32 = 5
	Korean             uint32 = 128
	ChineseTraditional uint32 = 129
	ChineseSimplified  uint32 = 130
	Japanese           uint32 = 131
)

const (
	magic      = "TLK V3.0"
	headerSize = 20
	entrySize  = 40
	resRefSize = 16
)

// Encoding returns the text encoding of a language's tables.
func Encoding(lang uint32) encoding.Encoding {
	switch lang {
	case Polish:
		return charmap.Windows1250
	case Korean:
		return korean.EUCKR
	case ChineseTraditional:
		return traditionalchinese.Big5
	case ChineseSimplified:
		return simplifiedchinese.GBK
	case Japanese:
		return japanese.ShiftJIS
	default:
		return charmap.Windows1252
	}
}

// Entry is one string table entry. Text is held as UTF-8.
type Entry struct {
	Flags          uint32
	SoundResRef    string
	VolumeVariance uint32
	PitchVariance  uint32
	SoundLength    float32
	Text           string
}

// TextEntry returns an entry carrying only text.
func TextEntry(text string) Entry {
	return Entry{Flags: FlagText, Text: text}
}

// Table is an ordered string table addressed by index.
//
// A Table may carry a baseline snapshot; Changed reports the indices that
// differ from it.
type Table struct {
	Language uint32

	entries  []Entry
	baseline []Entry
	hasBase  bool
}

// New returns an empty table for lang.
func New(lang uint32) *Table {
	return &Table{Language: lang}
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entry returns entry i.
func (t *Table) Entry(i int) Entry { return t.entries[i] }

// Entries returns a copy of all entries.
func (t *Table) Entries() []Entry { return slices.Clone(t.entries) }

// Set replaces entry i, growing the table with empty entries if needed.
func (t *Table) Set(i int, e Entry) {
	if i >= len(t.entries) {
		t.entries = append(t.entries, make([]Entry, i+1-len(t.entries))...)
	}
	t.entries[i] = e
}

// Append adds entries to the end of the table.
func (t *Table) Append(entries ...Entry) {
	t.entries = append(t.entries, entries...)
}

// AppendTable adds every entry of o to the end of t.
func (t *Table) AppendTable(o *Table) {
	t.entries = append(t.entries, o.entries...)
}

// Snapshot records the current entries as the baseline.
func (t *Table) Snapshot() {
	t.baseline = slices.Clone(t.entries)
	t.hasBase = true
}

// Changed returns the sorted indices whose entries differ from the
// baseline, including indices added since. Without a baseline every
// index is reported.
func (t *Table) Changed() []int {
	var out []int
	for i, e := range t.entries {
		if !t.hasBase || i >= len(t.baseline) || t.baseline[i] != e {
			out = append(out, i)
		}
	}
	return out
}

// Read decodes a TLK V3.0 table.
func Read(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(bytes.NewReader(data), int64(len(data)))
}

// ReadFile decodes the table stored at path.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type header struct {
	language    uint32
	count       uint32
	stringsBase uint32
}

func readHeader(r io.Reader) (header, error) {
	d := binio.NewDecoder(r)
	m, err := d.Bytes(len(magic))
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(m) != magic {
		return header{}, fmt.Errorf("%w: %q", ErrBadHeader, m)
	}
	var h header
	for _, f := range []*uint32{&h.language, &h.count, &h.stringsBase} {
		if *f, err = d.Uint32(); err != nil {
			return header{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
	}
	return h, nil
}

func decode(r *bytes.Reader, size int64) (*Table, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if int64(h.count)*entrySize > size-headerSize {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrBadHeader, h.count, size)
	}

	t := &Table{Language: h.language, entries: make([]Entry, h.count)}
	dec := Encoding(h.language).NewDecoder()
	d := binio.NewDecoder(io.NewSectionReader(r, headerSize, int64(h.count)*entrySize))
	for i := range t.entries {
		e := &t.entries[i]
		var off, n uint32
		if e.Flags, err = d.Uint32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if e.SoundResRef, err = d.FixedString(resRefSize); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if e.VolumeVariance, err = d.Uint32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if e.PitchVariance, err = d.Uint32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if off, err = d.Uint32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if n, err = d.Uint32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if e.SoundLength, err = d.Float32(); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		if n == 0 {
			continue
		}
		start := int64(h.stringsBase) + int64(off)
		if start+int64(n) > size {
			return nil, fmt.Errorf("tlk: entry %d: string outside file", i)
		}
		raw := make([]byte, n)
		if _, err := r.ReadAt(raw, start); err != nil {
			return nil, fmt.Errorf("tlk: entry %d: %w", i, err)
		}
		text, err := dec.Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("tlk: entry %d: decode text: %w", i, err)
		}
		e.Text = string(text)
	}
	return t, nil
}

// Write encodes t as TLK V3.0.
func (t *Table) Write(w io.Writer) error {
	enc := encoding.ReplaceUnsupported(Encoding(t.Language).NewEncoder())
	texts := make([][]byte, len(t.entries))
	for i, e := range t.entries {
		b, err := enc.Bytes([]byte(e.Text))
		if err != nil {
			return fmt.Errorf("tlk: entry %d: encode text: %w", i, err)
		}
		texts[i] = b
	}

	count, err := sizing.Uint32(len(t.entries), ErrTooLarge)
	if err != nil {
		return err
	}
	stringsOff, err := sizing.Uint32(headerSize+entrySize*len(t.entries), ErrTooLarge)
	if err != nil {
		return err
	}
	offs := make([]uint32, len(texts))
	total := 0
	for i, b := range texts {
		if offs[i], err = sizing.Uint32(total, ErrTooLarge); err != nil {
			return err
		}
		total += len(b)
	}
	if _, err := sizing.Uint32(int(stringsOff)+total, ErrTooLarge); err != nil {
		return err
	}

	e := binio.NewEncoder(w)
	e.Bytes([]byte(magic))
	e.Uint32(t.Language)
	e.Uint32(count)
	e.Uint32(stringsOff)

	for i, entry := range t.entries {
		flags := entry.Flags
		if len(texts[i]) > 0 {
			flags |= FlagText
		}
		e.Uint32(flags)
		e.FixedString(entry.SoundResRef, resRefSize)
		e.Uint32(entry.VolumeVariance)
		e.Uint32(entry.PitchVariance)
		e.Uint32(offs[i])
		e.Uint32(uint32(len(texts[i]))) //nolint:gosec // bounded by the total checked above
		e.Float32(entry.SoundLength)
	}
	for _, b := range texts {
		e.Bytes(b)
	}
	return e.Err()
}

// WriteFile atomically replaces path with the encoded table.
func (t *Table) WriteFile(path string) error {
	return fsutil.WriteStream(path, t.Write)
}

// Size returns the entry count recorded in the header of the table at
// path without decoding entries.
func Size(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return int(h.count), nil
}

// Concat writes the entries of first followed by those of second to
// dest, using first's language.
func Concat(first, second, dest string) error {
	a, err := ReadFile(first)
	if err != nil {
		return err
	}
	b, err := ReadFile(second)
	if err != nil {
		return err
	}
	a.AppendTable(b)
	return a.WriteFile(dest)
}
