// Package sizing provides overflow-safe bounds arithmetic for archive offsets.
package sizing

import "math"

// Within reports whether the window [off, off+length) lies inside [0, total).
// A window whose end overflows uint64 is never within bounds.
func Within(off, length, total uint64) bool {
	end := off + length
	if end < off {
		return false
	}
	return end <= total
}

// Uint32 converts a non-negative int to uint32, returning overflowErr when
// the value is negative or too large for the on-disk field.
func Uint32(n int, overflowErr error) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(n), nil
}
