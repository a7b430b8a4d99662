package nwnpatch

import (
	"errors"

	"github.com/meigma/nwnpatch/bif"
	"github.com/meigma/nwnpatch/erf"
	"github.com/meigma/nwnpatch/patcher"
	"github.com/meigma/nwnpatch/resource"
	"github.com/meigma/nwnpatch/tlk"
	"github.com/meigma/nwnpatch/twoda"
)

// ErrUnknownFormat is returned by Open for paths that are neither a
// directory nor a recognized archive.
var ErrUnknownFormat = errors.New("nwnpatch: unknown resource store format")

// ErrNeedsKey is returned by Open for bare BIF archives, which carry no
// resource names and must be read through their KEY file.
var ErrNeedsKey = errors.New("nwnpatch: bif archive must be opened through its key file")

// Re-exported sentinel errors.
var (
	// ErrNotExist is returned when a repository does not hold a resource.
	ErrNotExist = resource.ErrNotExist

	// ErrReadOnly is returned by Create on read-only repositories.
	ErrReadOnly = resource.ErrReadOnly

	// ErrClosed is returned by operations on a closed repository.
	ErrClosed = resource.ErrClosed

	// ErrUnsupportedHeader is returned for BIF archives with an unknown layout.
	ErrUnsupportedHeader = bif.ErrUnsupportedHeader

	// ErrBadERFHeader is returned for malformed ERF containers.
	ErrBadERFHeader = erf.ErrBadHeader

	// ErrRowOutOfRange is returned when an absolute row lies past the base table.
	ErrRowOutOfRange = patcher.ErrRowOutOfRange

	// ErrTooFewPackages is returned by JoinAll with fewer than two packages.
	ErrTooFewPackages = patcher.ErrTooFewPackages

	// ErrBadCell is returned when a table cell cannot be written losslessly.
	ErrBadCell = twoda.ErrBadCell

	// ErrTooLarge is returned when a string table overflows its 32-bit fields.
	ErrTooLarge = tlk.ErrTooLarge
)
