package resource

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DirRepository is a Repository backed by a filesystem directory.
//
// Lookups try the canonical filename first and fall back to a
// case-insensitive scan of the directory listing.
type DirRepository struct {
	dir    string
	logger *slog.Logger
}

var _ Repository = (*DirRepository)(nil)

// DirOption configures a DirRepository.
type DirOption func(*DirRepository)

// WithDirLogger sets the logger used for lookup diagnostics.
func WithDirLogger(logger *slog.Logger) DirOption {
	return func(r *DirRepository) {
		r.logger = logger
	}
}

// NewDirRepository returns a repository over dir. The directory must exist.
func NewDirRepository(dir string, opts ...DirOption) (*DirRepository, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource: %s is not a directory", dir)
	}
	r := &DirRepository{dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *DirRepository) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Dir returns the backing directory.
func (r *DirRepository) Dir() string {
	return r.dir
}

// findFile returns the path of the regular file holding id, or "".
func (r *DirRepository) findFile(id ID) string {
	name := id.FileName()
	path := filepath.Join(r.dir, name)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path
	}
	return r.findFileIgnoreCase(name)
}

func (r *DirRepository) findFileIgnoreCase(name string) string {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log().Warn("listing directory failed", "dir", r.dir, "error", err)
		return ""
	}
	for _, e := range entries {
		if !strings.EqualFold(e.Name(), name) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
		return ""
	}
	return ""
}

// Open implements Repository.
func (r *DirRepository) Open(id ID) (io.ReadCloser, error) {
	path := r.findFile(id)
	if path == "" {
		return nil, NotExist("open", id)
	}
	return os.Open(path)
}

// ReadFile implements Repository.
func (r *DirRepository) ReadFile(id ID) ([]byte, error) {
	path := r.findFile(id)
	if path == "" {
		return nil, NotExist("readfile", id)
	}
	return os.ReadFile(path)
}

// Contains implements Repository.
func (r *DirRepository) Contains(id ID) bool {
	return r.findFile(id) != ""
}

// IDs implements Repository. Only regular files are listed.
func (r *DirRepository) IDs() []ID {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log().Warn("listing directory failed", "dir", r.dir, "error", err)
		return nil
	}
	ids := make([]ID, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ids = append(ids, ParseFileName(e.Name()))
	}
	slices.SortFunc(ids, Compare)
	return slices.Compact(ids)
}

// Create implements Repository. The file is written under the canonical
// filename, replacing any existing content.
func (r *DirRepository) Create(id ID) (io.WriteCloser, error) {
	return os.Create(filepath.Join(r.dir, id.FileName()))
}

// Writable implements Repository by probing for a temporary file.
func (r *DirRepository) Writable() bool {
	f, err := os.CreateTemp(r.dir, ".nwnpatch-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// Stat implements Repository.
func (r *DirRepository) Stat(id ID) (Info, error) {
	path := r.findFile(id)
	if path == "" {
		return Info{}, NotExist("stat", id)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Location implements Repository. It returns the resolved file path.
func (r *DirRepository) Location(id ID) (string, bool) {
	path := r.findFile(id)
	return path, path != ""
}

// Close implements Repository. Directory repositories hold no handles.
func (r *DirRepository) Close() error {
	return nil
}
