package bif

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/meigma/nwnpatch/internal/binio"
	"github.com/meigma/nwnpatch/resource"
)

// MagicKey identifies a KEY V1 file.
const MagicKey = "KEY V1  "

// ErrBadKey is returned by OpenKey for malformed KEY files.
var ErrBadKey = errors.New("bif: invalid key file")

const (
	keyHeaderSize  = 64
	keyFileRecord  = 12
	keyEntryRecord = 22
	resRefSize     = 16
	slotMask       = 0xFFFFF
	bifIndexShift  = 20
)

// location addresses one resource inside the installation.
type location struct {
	bif  int
	slot int
}

// KeyRepository is a read-only Repository over a KEY file and the BIF
// archives it names. Archives are opened on first use, relative to the
// KEY file's directory.
//
// Keys that reference a missing archive are dropped at load time so that
// Contains agrees with Open. KeyRepository is not safe for concurrent use.
type KeyRepository struct {
	path    string
	bifs    []string
	readers []*Reader
	index   map[resource.ID]location
	ids     []resource.ID
	logger  *slog.Logger
	closed  bool
}

var _ resource.Repository = (*KeyRepository)(nil)

// KeyOption configures a KeyRepository.
type KeyOption func(*KeyRepository)

// WithKeyLogger sets the logger used by the repository and its readers.
func WithKeyLogger(logger *slog.Logger) KeyOption {
	return func(k *KeyRepository) {
		k.logger = logger
	}
}

// OpenKey loads the KEY file at path. When several keys share an ID the
// later one wins.
func OpenKey(path string, opts ...KeyOption) (*KeyRepository, error) {
	k := &KeyRepository{path: path, index: make(map[resource.ID]location)}
	for _, opt := range opts {
		opt(k)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := k.load(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	k.readers = make([]*Reader, len(k.bifs))
	return k, nil
}

func (k *KeyRepository) log() *slog.Logger {
	if k.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return k.logger
}

type keyHeader struct {
	bifCount  uint32
	keyCount  uint32
	fileTable uint32
	keyTable  uint32
	buildYear uint32
	buildDay  uint32
}

func (k *KeyRepository) load(f *os.File) error {
	d := binio.NewDecoder(io.NewSectionReader(f, 0, keyHeaderSize))
	magic, err := d.Bytes(len(MagicKey))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if string(magic) != MagicKey {
		return fmt.Errorf("%w: magic %q", ErrBadKey, magic)
	}
	var h keyHeader
	for _, field := range []*uint32{&h.bifCount, &h.keyCount, &h.fileTable, &h.keyTable, &h.buildYear, &h.buildDay} {
		if *field, err = d.Uint32(); err != nil {
			return fmt.Errorf("%w: header: %v", ErrBadKey, err)
		}
	}

	if err := k.loadFileTable(f, h); err != nil {
		return err
	}
	present := make([]bool, len(k.bifs))
	for i, p := range k.bifs {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			present[i] = true
			continue
		}
		k.log().Warn("archive named by key file is missing", "key", k.path, "bif", p)
	}
	return k.loadKeyTable(f, h, present)
}

func (k *KeyRepository) loadFileTable(f *os.File, h keyHeader) error {
	dir := filepath.Dir(k.path)
	d := binio.NewDecoder(bufio.NewReader(io.NewSectionReader(f, int64(h.fileTable), int64(h.bifCount)*keyFileRecord)))
	type rec struct {
		nameOff  uint32
		nameSize uint16
	}
	recs := make([]rec, 0, h.bifCount)
	for i := range h.bifCount {
		if _, err := d.Uint32(); err != nil { // file size
			return fmt.Errorf("%w: file table entry %d: %v", ErrBadKey, i, err)
		}
		off, err := d.Uint32()
		if err != nil {
			return fmt.Errorf("%w: file table entry %d: %v", ErrBadKey, i, err)
		}
		size, err := d.Uint16()
		if err != nil {
			return fmt.Errorf("%w: file table entry %d: %v", ErrBadKey, i, err)
		}
		if _, err := d.Uint16(); err != nil { // drives
			return fmt.Errorf("%w: file table entry %d: %v", ErrBadKey, i, err)
		}
		recs = append(recs, rec{nameOff: off, nameSize: size})
	}

	k.bifs = make([]string, 0, len(recs))
	for i, r := range recs {
		nd := binio.NewDecoder(io.NewSectionReader(f, int64(r.nameOff), int64(r.nameSize)))
		name, err := nd.FixedString(int(r.nameSize))
		if err != nil {
			return fmt.Errorf("%w: archive name %d: %v", ErrBadKey, i, err)
		}
		name = strings.ReplaceAll(name, "\\", "/")
		k.bifs = append(k.bifs, filepath.Join(dir, filepath.FromSlash(name)))
	}
	return nil
}

func (k *KeyRepository) loadKeyTable(f *os.File, h keyHeader, present []bool) error {
	d := binio.NewDecoder(bufio.NewReader(io.NewSectionReader(f, int64(h.keyTable), int64(h.keyCount)*keyEntryRecord)))
	for i := range h.keyCount {
		resRef, err := d.FixedString(resRefSize)
		if err != nil {
			return fmt.Errorf("%w: key %d: %v", ErrBadKey, i, err)
		}
		typ, err := d.Uint16()
		if err != nil {
			return fmt.Errorf("%w: key %d: %v", ErrBadKey, i, err)
		}
		resID, err := d.Uint32()
		if err != nil {
			return fmt.Errorf("%w: key %d: %v", ErrBadKey, i, err)
		}
		loc := location{bif: int(resID >> bifIndexShift), slot: int(resID & slotMask)}
		if loc.bif >= len(k.bifs) {
			k.log().Warn("key references unknown archive", "key", k.path, "resref", resRef, "bif", loc.bif)
			continue
		}
		if !present[loc.bif] {
			continue
		}
		k.index[resource.IDForCode(resRef, typ)] = loc
	}

	k.ids = make([]resource.ID, 0, len(k.index))
	for id := range k.index {
		k.ids = append(k.ids, id)
	}
	slices.SortFunc(k.ids, resource.Compare)
	return nil
}

// Path returns the KEY file path.
func (k *KeyRepository) Path() string { return k.path }

// Archives returns the archive paths named by the KEY file.
func (k *KeyRepository) Archives() []string { return slices.Clone(k.bifs) }

func (k *KeyRepository) reader(i int) (*Reader, error) {
	if k.closed {
		return nil, resource.ErrClosed
	}
	if r := k.readers[i]; r != nil {
		return r, nil
	}
	r, err := Open(k.bifs[i], WithLogger(k.logger))
	if err != nil {
		return nil, err
	}
	k.readers[i] = r
	return r, nil
}

func (k *KeyRepository) lookup(op string, id resource.ID) (*Reader, int, error) {
	loc, ok := k.index[id]
	if !ok {
		return nil, 0, resource.NotExist(op, id)
	}
	r, err := k.reader(loc.bif)
	if err != nil {
		return nil, 0, err
	}
	return r, loc.slot, nil
}

// Open implements resource.Repository.
func (k *KeyRepository) Open(id resource.ID) (io.ReadCloser, error) {
	r, slot, err := k.lookup("open", id)
	if err != nil {
		return nil, err
	}
	sr, err := r.OpenEntry(slot)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(sr), nil
}

// ReadFile implements resource.Repository.
func (k *KeyRepository) ReadFile(id resource.ID) ([]byte, error) {
	r, slot, err := k.lookup("readfile", id)
	if err != nil {
		return nil, err
	}
	return r.ReadEntry(slot)
}

// Contains implements resource.Repository.
// A closed repository contains nothing.
func (k *KeyRepository) Contains(id resource.ID) bool {
	if k.closed {
		return false
	}
	_, ok := k.index[id]
	return ok
}

// IDs implements resource.Repository.
func (k *KeyRepository) IDs() []resource.ID { return slices.Clone(k.ids) }

// Create implements resource.Repository. BIF installations are read-only.
func (k *KeyRepository) Create(resource.ID) (io.WriteCloser, error) {
	return nil, resource.ErrReadOnly
}

// Writable implements resource.Repository.
func (k *KeyRepository) Writable() bool { return false }

// Stat implements resource.Repository. The modification time is that of
// the archive holding the resource.
func (k *KeyRepository) Stat(id resource.ID) (resource.Info, error) {
	r, slot, err := k.lookup("stat", id)
	if err != nil {
		return resource.Info{}, err
	}
	size, err := r.EntrySize(slot)
	if err != nil {
		return resource.Info{}, err
	}
	var mod time.Time
	if info, err := os.Stat(r.Path()); err == nil {
		mod = info.ModTime()
	}
	return resource.Info{ID: id, Size: int64(size), ModTime: mod}, nil
}

// Location implements resource.Repository, reporting the archive path.
func (k *KeyRepository) Location(id resource.ID) (string, bool) {
	loc, ok := k.index[id]
	if !ok {
		return "", false
	}
	return k.bifs[loc.bif], true
}

// Close closes every archive opened so far.
func (k *KeyRepository) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	var errs []error
	for i, r := range k.readers {
		if r == nil {
			continue
		}
		errs = append(errs, r.Close())
		k.readers[i] = nil
	}
	return errors.Join(errs...)
}
