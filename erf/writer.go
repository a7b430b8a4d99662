package erf

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/internal/fsutil"
	"github.com/meigma/nwnpatch/resource"
)

// Writer builds a container archive in memory. Resources are written in
// ascending ID order; adding an ID twice replaces the earlier content.
type Writer struct {
	fileType    string
	built       time.Time
	description map[uint32]string
	resources   map[resource.ID][]byte
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithBuildTime sets the build date recorded in the header.
func WithBuildTime(t time.Time) WriterOption {
	return func(w *Writer) {
		w.built = t
	}
}

// WithDescription adds a localized description for a language id.
func WithDescription(lang uint32, text string) WriterOption {
	return func(w *Writer) {
		w.description[lang] = text
	}
}

// NewWriter returns a Writer for fileType, one of TypeHAK, TypeMOD or
// TypeERF.
func NewWriter(fileType string, opts ...WriterOption) (*Writer, error) {
	switch fileType {
	case TypeHAK, TypeMOD, TypeERF:
	default:
		return nil, fmt.Errorf("erf: unsupported file type %q", fileType)
	}
	w := &Writer{
		fileType:    fileType,
		built:       time.Now(),
		description: make(map[uint32]string),
		resources:   make(map[resource.ID][]byte),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// typeCode maps an ID's type to its numeric code. Numeric extensions are
// taken verbatim so unknown resources survive a read/write cycle.
func typeCode(id resource.ID) (uint16, error) {
	if code, ok := resource.TypeCode(id.Type()); ok {
		return code, nil
	}
	n, err := strconv.ParseUint(id.Type(), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("erf: unknown resource type %q", id.Type())
	}
	return uint16(n), nil
}

// Add stores data under id.
func (w *Writer) Add(id resource.ID, data []byte) error {
	if len(id.Name()) > resRefSize {
		return fmt.Errorf("erf: resref %q longer than %d characters", id.Name(), resRefSize)
	}
	if _, err := typeCode(id); err != nil {
		return err
	}
	w.resources[id] = data
	return nil
}

// AddFile stores the file at path under the ID parsed from its name.
func (w *Writer) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return w.Add(resource.ParseFileName(path), data)
}

// Len returns the number of stored resources.
func (w *Writer) Len() int { return len(w.resources) }

// WriteTo encodes the archive.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	ids := make([]resource.ID, 0, len(w.resources))
	for id := range w.resources {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, resource.Compare)

	langs := make([]uint32, 0, len(w.description))
	locSize := 0
	for lang, text := range w.description {
		langs = append(langs, lang)
		locSize += 8 + len(text)
	}
	slices.Sort(langs)

	count := len(ids)
	locOff := headerSize
	keyOff := locOff + locSize
	resOff := keyOff + count*keyEntrySize
	dataOff := resOff + count*resEntrySize

	year, day := w.built.Year()-1900, w.built.YearDay()-1

	e := binio.NewEncoder(out)
	e.Bytes([]byte(w.fileType))
	e.Bytes([]byte(Version))
	e.Uint32(u32(len(langs)))
	e.Uint32(u32(locSize))
	e.Uint32(u32(count))
	e.Uint32(u32(locOff))
	e.Uint32(u32(keyOff))
	e.Uint32(u32(resOff))
	e.Uint32(u32(max(year, 0)))
	e.Uint32(u32(day))
	e.Uint32(0xFFFFFFFF)
	e.Zeros(116)

	for _, lang := range langs {
		text := w.description[lang]
		e.Uint32(lang)
		e.Uint32(u32(len(text)))
		e.Bytes([]byte(text))
	}
	for i, id := range ids {
		code, _ := typeCode(id)
		e.FixedString(id.Name(), resRefSize)
		e.Uint32(u32(i))
		e.Uint16(code)
		e.Uint16(0)
	}
	off := dataOff
	for _, id := range ids {
		n := len(w.resources[id])
		e.Uint32(u32(off))
		e.Uint32(u32(n))
		off += n
	}
	for _, id := range ids {
		e.Bytes(w.resources[id])
	}
	return e.Written(), e.Err()
}

// u32 narrows a non-negative size; archives are limited to 4 GiB.
func u32(n int) uint32 {
	return uint32(n) //nolint:gosec // callers pass non-negative sizes
}

// WriteFile atomically writes the archive to path.
func (w *Writer) WriteFile(path string) error {
	return fsutil.WriteStream(path, func(out io.Writer) error {
		_, err := w.WriteTo(out)
		return err
	})
}
