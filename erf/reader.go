// Package erf reads and writes ERF V1.0 container archives, the format
// behind HAK, MOD and ERF files.
package erf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/internal/sizing"
	"github.com/meigma/nwnpatch/resource"
)

// ErrBadHeader is returned by Open for files that are not ERF V1.0.
var ErrBadHeader = errors.New("erf: bad header")

// File types written in the first four bytes of the header.
const (
	TypeHAK = "HAK "
	TypeMOD = "MOD "
	TypeERF = "ERF "
)

// Version is the only supported format version.
const Version = "V1.0"

const (
	headerSize   = 160
	keyEntrySize = 24
	resEntrySize = 8
	resRefSize   = 16
)

// Header holds the decoded fixed header fields.
type Header struct {
	FileType            string
	LanguageCount       uint32
	LocalizedStringSize uint32
	EntryCount          uint32
	LocalizedStringsOff uint32
	KeyListOff          uint32
	ResourceListOff     uint32
	BuildYear           uint32
	BuildDay            uint32
	DescriptionStrRef   uint32
}

// BuildTime returns the build date encoded in the header.
func (h Header) BuildTime() time.Time {
	return time.Date(1900+int(h.BuildYear), time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(h.BuildDay))
}

type entry struct {
	off  int64
	size int64
}

// Reader is a read-only Repository over one container archive.
type Reader struct {
	f       *os.File
	path    string
	modTime time.Time
	header  Header
	index   map[resource.ID]entry
	ids     []resource.ID
	descr   map[uint32]string
	logger  *slog.Logger
	closed  bool
}

var _ resource.Repository = (*Reader)(nil)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Open opens the archive at path and decodes its key and resource lists.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{f: f, path: path, index: make(map[resource.ID]entry)}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.load(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

func (r *Reader) load() error {
	info, err := r.f.Stat()
	if err != nil {
		return err
	}
	r.modTime = info.ModTime()
	size := uint64(info.Size()) //nolint:gosec // file sizes are non-negative

	d := binio.NewDecoder(io.NewSectionReader(r.f, 0, headerSize))
	ft, err := d.Bytes(4)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	ver, err := d.Bytes(4)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(ver) != Version {
		return fmt.Errorf("%w: version %q", ErrBadHeader, ver)
	}
	h := Header{FileType: string(ft)}
	for _, f := range []*uint32{
		&h.LanguageCount, &h.LocalizedStringSize, &h.EntryCount,
		&h.LocalizedStringsOff, &h.KeyListOff, &h.ResourceListOff,
		&h.BuildYear, &h.BuildDay, &h.DescriptionStrRef,
	} {
		if *f, err = d.Uint32(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
	}
	r.header = h

	count := uint64(h.EntryCount)
	if !sizing.Within(uint64(h.KeyListOff), count*keyEntrySize, size) ||
		!sizing.Within(uint64(h.ResourceListOff), count*resEntrySize, size) {
		return fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrBadHeader, count, size)
	}

	if err := r.loadDescriptions(size); err != nil {
		r.log().Warn("skipping localized descriptions", "path", r.path, "error", err)
	}

	keys := binio.NewDecoder(bufio.NewReader(io.NewSectionReader(r.f, int64(h.KeyListOff), int64(count*keyEntrySize))))
	res := binio.NewDecoder(bufio.NewReader(io.NewSectionReader(r.f, int64(h.ResourceListOff), int64(count*resEntrySize))))
	for i := range h.EntryCount {
		resRef, err := keys.FixedString(resRefSize)
		if err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		if err := keys.Skip(4); err != nil { // resource id
			return fmt.Errorf("key %d: %w", i, err)
		}
		typ, err := keys.Uint16()
		if err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		if err := keys.Skip(2); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		off, err := res.Uint32()
		if err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		n, err := res.Uint32()
		if err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		if !sizing.Within(uint64(off), uint64(n), size) {
			r.log().Warn("resource outside archive bounds", "path", r.path, "resref", resRef, "offset", off, "size", n)
			continue
		}
		r.index[resource.IDForCode(resRef, typ)] = entry{off: int64(off), size: int64(n)}
	}

	r.ids = make([]resource.ID, 0, len(r.index))
	for id := range r.index {
		r.ids = append(r.ids, id)
	}
	slices.SortFunc(r.ids, resource.Compare)
	return nil
}

func (r *Reader) loadDescriptions(size uint64) error {
	h := r.header
	r.descr = make(map[uint32]string, h.LanguageCount)
	if h.LanguageCount == 0 {
		return nil
	}
	if !sizing.Within(uint64(h.LocalizedStringsOff), uint64(h.LocalizedStringSize), size) {
		return errors.New("localized string list outside archive bounds")
	}
	d := binio.NewDecoder(io.NewSectionReader(r.f, int64(h.LocalizedStringsOff), int64(h.LocalizedStringSize)))
	for range h.LanguageCount {
		lang, err := d.Uint32()
		if err != nil {
			return err
		}
		n, err := d.Uint32()
		if err != nil {
			return err
		}
		if uint64(n) > uint64(h.LocalizedStringSize) {
			return fmt.Errorf("description of %d bytes exceeds list size", n)
		}
		text, err := d.FixedString(int(n))
		if err != nil {
			return err
		}
		r.descr[lang] = text
	}
	return nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header { return r.header }

// Description returns the localized description for a language id.
func (r *Reader) Description(lang uint32) (string, bool) {
	s, ok := r.descr[lang]
	return s, ok
}

// Path returns the archive path.
func (r *Reader) Path() string { return r.path }

func (r *Reader) lookup(op string, id resource.ID) (entry, error) {
	if r.closed {
		return entry{}, resource.ErrClosed
	}
	e, ok := r.index[id]
	if !ok {
		return entry{}, resource.NotExist(op, id)
	}
	return e, nil
}

// Open implements resource.Repository.
func (r *Reader) Open(id resource.ID) (io.ReadCloser, error) {
	e, err := r.lookup("open", id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(r.f, e.off, e.size)), nil
}

// ReadFile implements resource.Repository.
func (r *Reader) ReadFile(id resource.ID) ([]byte, error) {
	e, err := r.lookup("readfile", id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.size)
	if _, err := r.f.ReadAt(buf, e.off); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// Contains implements resource.Repository. A closed archive contains
// nothing.
func (r *Reader) Contains(id resource.ID) bool {
	if r.closed {
		return false
	}
	_, ok := r.index[id]
	return ok
}

// IDs implements resource.Repository.
func (r *Reader) IDs() []resource.ID { return slices.Clone(r.ids) }

// Create implements resource.Repository. Archives are read-only; build new
// ones with Writer.
func (r *Reader) Create(resource.ID) (io.WriteCloser, error) {
	return nil, resource.ErrReadOnly
}

// Writable implements resource.Repository.
func (r *Reader) Writable() bool { return false }

// Stat implements resource.Repository. Entries share the archive's
// modification time.
func (r *Reader) Stat(id resource.ID) (resource.Info, error) {
	e, err := r.lookup("stat", id)
	if err != nil {
		return resource.Info{}, err
	}
	return resource.Info{ID: id, Size: e.size, ModTime: r.modTime}, nil
}

// Location implements resource.Repository.
func (r *Reader) Location(id resource.ID) (string, bool) {
	if !r.Contains(id) {
		return "", false
	}
	return r.path, true
}

// Close releases the archive file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
