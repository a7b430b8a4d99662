package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		off, length, size uint64
		want              bool
	}{
		{"inside", 10, 5, 20, true},
		{"exact end", 15, 5, 20, true},
		{"past end", 16, 5, 20, false},
		{"empty at end", 20, 0, 20, true},
		{"overflow", math.MaxUint64, 2, math.MaxUint64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Within(tt.off, tt.length, tt.size))
		})
	}
}

func TestUint32(t *testing.T) {
	t.Parallel()

	v, err := Uint32(7, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	_, err = Uint32(-1, errOverflow)
	require.ErrorIs(t, err, errOverflow)

	v, err = Uint32(math.MaxUint32, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	_, err = Uint32(math.MaxUint32+1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}
