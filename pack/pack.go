// Package pack turns a set of named blobs into a distributable archive.
//
// A Sink accepts the blobs and a format tag. The ERF family ("HAK",
// "MOD", "ERF") is written with package erf; "ZIP" produces a deflate
// compressed zip archive.
package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/nwnpatch/internal/fsutil"
)

// ErrUnknownFormat is returned for format tags no sink handles.
var ErrUnknownFormat = errors.New("pack: unknown format")

// Format tags.
const (
	FormatHAK = "HAK"
	FormatMOD = "MOD"
	FormatERF = "ERF"
	FormatZIP = "ZIP"
)

// Blob is one named input. Data is read from Path when nil.
type Blob struct {
	Name string
	Path string
	Data []byte
}

// Load returns the blob content.
func (b Blob) Load() ([]byte, error) {
	if b.Data != nil || b.Path == "" {
		return b.Data, nil
	}
	return os.ReadFile(b.Path)
}

// Sink writes blobs to dest in the given format.
type Sink interface {
	Pack(ctx context.Context, dest, format string, blobs []Blob) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, dest, format string, blobs []Blob) error

// Pack implements Sink.
func (f SinkFunc) Pack(ctx context.Context, dest, format string, blobs []Blob) error {
	return f(ctx, dest, format, blobs)
}

// Archive dispatches to the ERF or ZIP writer by format tag.
type Archive struct {
	erf ERF
	zip Zip
}

var _ Sink = Archive{}

// Default returns the Sink handling every built-in format.
func Default() Archive { return Archive{} }

// Pack implements Sink.
func (a Archive) Pack(ctx context.Context, dest, format string, blobs []Blob) error {
	switch strings.ToUpper(format) {
	case FormatHAK, FormatMOD, FormatERF:
		return a.erf.Pack(ctx, dest, format, blobs)
	case FormatZIP:
		return a.zip.Pack(ctx, dest, format, blobs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DirBlobs returns a blob for every regular file in dir, sorted by name.
func DirBlobs(dir string) ([]Blob, error) {
	names, err := fsutil.RegularFiles(dir)
	if err != nil {
		return nil, err
	}
	blobs := make([]Blob, 0, len(names))
	for _, n := range names {
		blobs = append(blobs, Blob{Name: n, Path: filepath.Join(dir, n)})
	}
	return blobs, nil
}
