//go:build unix

package bif

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapRegion maps [off, off+n) of f read-only. The mapping starts at the
// enclosing page boundary; the returned slice is trimmed to the region.
func mapRegion(f *os.File, off, n int64) ([]byte, func() error, error) {
	if n == 0 {
		return []byte{}, nil, nil
	}
	page := int64(os.Getpagesize())
	aligned := off &^ (page - 1)
	lead := off - aligned

	region, err := unix.Mmap(int(f.Fd()), aligned, int(lead+n), unix.PROT_READ, unix.MAP_SHARED) //nolint:gosec // fd fits in int
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	return region[lead : lead+n], func() error { return unix.Munmap(region) }, nil
}
