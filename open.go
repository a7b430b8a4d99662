package nwnpatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/nwnpatch/bif"
	"github.com/meigma/nwnpatch/erf"
	"github.com/meigma/nwnpatch/resource"
)

// Names of the well-known files of a game installation.
const (
	KeyFile     = "chitin.key"
	OverrideDir = "override"
)

const magicLen = 8

type options struct {
	logger *slog.Logger
}

// Option configures Open and OpenInstall.
type Option func(*options)

// WithLogger sets the logger handed to the opened backends.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Open returns the Repository backing path. Directories open as
// directory repositories; files are recognized by their magic bytes.
func Open(path string, opts ...Option) (Repository, error) {
	o := newOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return asRepository(resource.NewDirRepository(path, resource.WithDirLogger(o.logger)))
	}

	magic, err := readMagic(path)
	if err != nil {
		return nil, err
	}
	switch {
	case magic == bif.MagicKey:
		o.logger.Debug("opening key file", "path", path)
		return asRepository(bif.OpenKey(path, bif.WithKeyLogger(o.logger)))
	case isERF(magic):
		o.logger.Debug("opening container", "path", path, "type", magic[:4])
		return asRepository(erf.Open(path, erf.WithLogger(o.logger)))
	case magic == bif.MagicV10 || magic == bif.MagicV11:
		return nil, fmt.Errorf("open %s: %w", path, ErrNeedsKey)
	default:
		return nil, fmt.Errorf("open %s: %w", path, ErrUnknownFormat)
	}
}

// OpenInstall opens the game installation rooted at dir: the KEY index
// overlaid by the override directory when one exists.
func OpenInstall(dir string, opts ...Option) (*resource.Composite, error) {
	o := newOptions(opts)

	key, err := bif.OpenKey(filepath.Join(dir, KeyFile), bif.WithKeyLogger(o.logger))
	if err != nil {
		return nil, err
	}
	repos := []resource.Repository{key}

	override := filepath.Join(dir, OverrideDir)
	if info, err := os.Stat(override); err == nil && info.IsDir() {
		d, err := resource.NewDirRepository(override, resource.WithDirLogger(o.logger))
		if err != nil {
			return nil, errors.Join(err, key.Close())
		}
		repos = append(repos, d)
	} else {
		o.logger.Debug("no override directory", "dir", dir)
	}
	return resource.NewComposite(repos...), nil
}

// asRepository keeps a failed constructor from returning a typed nil.
func asRepository[R Repository](r R, err error) (Repository, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func readMagic(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, magicLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(buf[:n]), nil
}

func isERF(magic string) bool {
	if len(magic) != magicLen || magic[4:] != erf.Version {
		return false
	}
	switch magic[:4] {
	case erf.TypeHAK, erf.TypeMOD, erf.TypeERF:
		return true
	}
	return false
}
