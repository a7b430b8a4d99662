// Package resource defines resource identifiers and the Repository
// abstraction used to read game resources from directories, indexed
// archives and container archives alike.
package resource

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// Sentinel errors shared by Repository implementations.
var (
	// ErrNotExist is returned when a repository does not hold a resource.
	ErrNotExist = fs.ErrNotExist

	// ErrReadOnly is returned by Create on repositories without write support.
	ErrReadOnly = errors.New("resource: repository is read-only")

	// ErrClosed is returned by operations on a closed repository.
	ErrClosed = errors.New("resource: repository is closed")
)

// Info describes a stored resource.
type Info struct {
	ID      ID
	Size    int64
	ModTime time.Time
}

// Repository is a uniform read/write facade over a resource store.
//
// Implementations must keep Contains(id) consistent with Open(id): Open
// succeeds exactly when Contains reports true. Callers own every returned
// reader or writer and must close it.
type Repository interface {
	// Open returns a stream for the resource, or an error wrapping
	// ErrNotExist when the repository does not hold it.
	Open(id ID) (io.ReadCloser, error)

	// ReadFile returns the whole resource content.
	ReadFile(id ID) ([]byte, error)

	// Contains reports whether the resource exists.
	Contains(id ID) bool

	// IDs returns every stored resource, sorted and without duplicates.
	IDs() []ID

	// Create opens a write sink for the resource, creating or truncating it.
	// Read-only repositories return ErrReadOnly.
	Create(id ID) (io.WriteCloser, error)

	// Writable reports whether Create can succeed.
	Writable() bool

	// Stat returns size and modification time. Backends that do not record
	// modification times report the zero time.
	Stat(id ID) (Info, error)

	// Location returns the filesystem path holding the resource: the file
	// itself for directories, the archive path for archives.
	Location(id ID) (string, bool)

	// Close releases file handles owned by the repository.
	Close() error
}

// ReadAll drains and closes rc. It is a helper for Repository.ReadFile
// implementations built on Open.
func ReadAll(rc io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// NotExist returns a path error wrapping ErrNotExist for id.
func NotExist(op string, id ID) error {
	return &fs.PathError{Op: op, Path: id.FileName(), Err: ErrNotExist}
}
