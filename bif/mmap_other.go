//go:build !unix

package bif

import (
	"fmt"
	"os"
)

// mapRegion reads [off, off+n) of f into memory on systems without mmap.
func mapRegion(f *os.File, off, n int64) ([]byte, func() error, error) {
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return buf, nil, nil
}
