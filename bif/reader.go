// Package bif reads BIFF indexed blob archives and the KEY files that
// name their contents.
//
// A BIF archive holds many resources concatenated with a fixed-size index
// table. Entries are addressed by zero-based slot, not by name; a KEY file
// maps resource IDs to (archive, slot) pairs.
//
// Two index layouts exist. "BIFFV1  " archives use 16-byte entries
// {keyId, dataOffset, length, typeTag}; "BIFFV1.1" archives use 20-byte
// entries with an extra reserved field after keyId that should be zero.
package bif

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/internal/sizing"
)

// Sentinel errors for archive access.
var (
	// ErrUnsupportedHeader is returned by Open for unknown magic bytes.
	ErrUnsupportedHeader = errors.New("bif: unsupported header")

	// ErrIndexOutOfRange is returned for slots outside [0, Len()).
	ErrIndexOutOfRange = errors.New("bif: index out of range")

	// ErrEntryBounds is returned when an entry's data window extends past
	// the end of the archive file.
	ErrEntryBounds = errors.New("bif: entry outside archive bounds")

	// ErrClosed is returned by operations on a closed Reader.
	ErrClosed = errors.New("bif: reader is closed")
)

// Magic values identifying the two index layouts.
const (
	MagicV10 = "BIFFV1  "
	MagicV11 = "BIFFV1.1"
)

const (
	headerSize     = 20
	entrySizeV10   = 16
	entrySizeV11   = 20
	lengthFieldV10 = 8
	lengthFieldV11 = 12
)

// Layout identifies the on-disk index entry layout.
type Layout uint8

const (
	// LayoutV10 uses 16-byte index entries.
	LayoutV10 Layout = iota
	// LayoutV11 uses 20-byte index entries with a reserved field.
	LayoutV11
)

// String returns the layout's magic without padding.
func (l Layout) String() string {
	switch l {
	case LayoutV10:
		return "V1"
	case LayoutV11:
		return "V1.1"
	default:
		return "unknown"
	}
}

// EntrySize returns the size of one index entry in bytes.
func (l Layout) EntrySize() int {
	if l == LayoutV11 {
		return entrySizeV11
	}
	return entrySizeV10
}

func (l Layout) lengthField() int {
	if l == LayoutV11 {
		return lengthFieldV11
	}
	return lengthFieldV10
}

// Entry is one decoded index table entry.
type Entry struct {
	Slot       int
	KeyID      uint32
	Reserved   uint32 // always zero for LayoutV10
	DataOffset uint32
	Length     uint32
	TypeTag    uint32
}

// Reader is a read-only accessor over one BIF archive.
//
// A Reader owns a single file handle. It is not safe for concurrent use:
// the index scratch buffer and the file cursor used by TransferEntry are
// shared state. Open separate Readers for parallel access.
type Reader struct {
	f         *os.File
	path      string
	size      int64
	layout    Layout
	count     uint32
	fixed     uint32
	varOffset uint32
	scratch   [entrySizeV11]byte
	logger    *slog.Logger

	mu       sync.Mutex // guards mappings and closed for Mapping.Close
	mappings map[*Mapping]struct{}
	closed   bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for non-fatal decode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Open opens the archive at path and decodes its header.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f, path, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string, opts ...Option) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := &Reader{
		f:        f,
		path:     path,
		size:     info.Size(),
		mappings: make(map[*Mapping]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	d := binio.NewDecoder(io.NewSectionReader(f, 0, headerSize))
	magic, err := d.Bytes(len(MagicV10))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedHeader, path, err)
	}
	switch string(magic) {
	case MagicV10:
		r.layout = LayoutV10
	case MagicV11:
		r.layout = LayoutV11
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHeader, magic)
	}
	if r.count, err = d.Uint32(); err != nil {
		return nil, fmt.Errorf("read slot count: %w", err)
	}
	if r.fixed, err = d.Uint32(); err != nil {
		return nil, fmt.Errorf("read fixed resource count: %w", err)
	}
	if r.varOffset, err = d.Uint32(); err != nil {
		return nil, fmt.Errorf("read index offset: %w", err)
	}

	r.log().Debug("opened bif", "path", path, "layout", r.layout.String(), "slots", r.count)
	return r, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Path returns the archive path.
func (r *Reader) Path() string { return r.path }

// Layout returns the index layout selected by the header magic.
func (r *Reader) Layout() Layout { return r.layout }

// Len returns the number of variable resource slots.
func (r *Reader) Len() int { return int(r.count) }

// FixedCount returns the header's fixed resource count. Readers do not
// use fixed resources.
func (r *Reader) FixedCount() int { return int(r.fixed) }

func (r *Reader) check(i int) error {
	if r.isClosed() {
		return ErrClosed
	}
	if i < 0 || i >= int(r.count) {
		return fmt.Errorf("%w: [0, %d): %d", ErrIndexOutOfRange, r.count, i)
	}
	return nil
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reader) entryOffset(i int) int64 {
	return int64(r.varOffset) + int64(i)*int64(r.layout.EntrySize())
}

// EntrySize returns the data length of slot i by decoding only its length
// field. I/O failures are logged and reported as a size of 0; callers
// must treat 0 as unknown.
func (r *Reader) EntrySize(i int) (uint32, error) {
	if err := r.check(i); err != nil {
		return 0, err
	}
	buf := r.scratch[:4]
	if _, err := r.f.ReadAt(buf, r.entryOffset(i)+int64(r.layout.lengthField())); err != nil {
		r.log().Warn("reading entry size failed", "path", r.path, "slot", i, "error", err)
		return 0, nil
	}
	size, err := binio.NewDecoder(bytes.NewReader(buf)).Uint32()
	if err != nil {
		r.log().Warn("decoding entry size failed", "path", r.path, "slot", i, "error", err)
		return 0, nil
	}
	return size, nil
}

// Entry decodes the full index entry for slot i.
func (r *Reader) Entry(i int) (Entry, error) {
	if err := r.check(i); err != nil {
		return Entry{}, err
	}
	buf := r.scratch[:r.layout.EntrySize()]
	if _, err := r.f.ReadAt(buf, r.entryOffset(i)); err != nil {
		return Entry{}, fmt.Errorf("read index entry %d: %w", i, err)
	}

	d := binio.NewDecoder(bytes.NewReader(buf))
	e := Entry{Slot: i}
	var err error
	if e.KeyID, err = d.Uint32(); err != nil {
		return Entry{}, err
	}
	if r.layout == LayoutV11 {
		if e.Reserved, err = d.Uint32(); err != nil {
			return Entry{}, err
		}
		if e.Reserved != 0 {
			r.log().Warn("unknown value in bif index entry", "path", r.path, "slot", i, "value", e.Reserved)
		}
	}
	if e.DataOffset, err = d.Uint32(); err != nil {
		return Entry{}, err
	}
	if e.Length, err = d.Uint32(); err != nil {
		return Entry{}, err
	}
	if e.TypeTag, err = d.Uint32(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// window returns the validated data window of slot i.
func (r *Reader) window(i int) (off, length int64, err error) {
	e, err := r.Entry(i)
	if err != nil {
		return 0, 0, err
	}
	if !sizing.Within(uint64(e.DataOffset), uint64(e.Length), uint64(r.size)) { //nolint:gosec // size is non-negative
		return 0, 0, fmt.Errorf("%w: slot %d [%d, +%d) in %d bytes", ErrEntryBounds, i, e.DataOffset, e.Length, r.size)
	}
	return int64(e.DataOffset), int64(e.Length), nil
}

// Entries returns an iterator over all decoded index entries. Iteration
// stops at the first decode failure, which is logged.
func (r *Reader) Entries() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i := range r.Len() {
			e, err := r.Entry(i)
			if err != nil {
				r.log().Warn("decoding index entry failed", "path", r.path, "slot", i, "error", err)
				return
			}
			if !yield(i, e) {
				return
			}
		}
	}
}

// OpenEntry returns a stream over slot i. The stream never reads outside
// the entry's data window.
func (r *Reader) OpenEntry(i int) (*io.SectionReader, error) {
	off, n, err := r.window(i)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(r.f, off, n), nil
}

// ReadEntry returns the content of slot i.
func (r *Reader) ReadEntry(i int) ([]byte, error) {
	sr, err := r.OpenEntry(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, fmt.Errorf("read slot %d: %w", i, err)
	}
	return buf, nil
}

// TransferEntry copies slot i to w straight from the archive's file
// descriptor. When w is an *os.File the kernel copies file-to-file
// without passing through user-space buffers.
//
// TransferEntry moves the shared file cursor.
func (r *Reader) TransferEntry(i int, w io.Writer) (int64, error) {
	off, n, err := r.window(i)
	if err != nil {
		return 0, err
	}
	if _, err := r.f.Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek slot %d: %w", i, err)
	}
	written, err := io.Copy(w, &io.LimitedReader{R: r.f, N: n})
	if err != nil {
		return written, fmt.Errorf("transfer slot %d: %w", i, err)
	}
	if written != n {
		return written, fmt.Errorf("transfer slot %d: %w", i, io.ErrUnexpectedEOF)
	}
	return written, nil
}

// TransferEntryToFile writes slot i to path, creating or truncating it,
// and syncs the file before returning.
func (r *Reader) TransferEntryToFile(i int, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := r.TransferEntry(i, f); err != nil {
		return err
	}
	return f.Sync()
}

// Close releases outstanding mappings and the archive's file handle.
// Subsequent operations fail with ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	mappings := r.mappings
	r.mappings = nil
	r.mu.Unlock()

	var errs []error
	for m := range mappings {
		if err := m.release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
