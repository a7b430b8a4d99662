package binio

import (
	"encoding/binary"
	"io"
	"math"
)

// Encoder writes fixed-width scalars to an io.Writer. The first write
// error is sticky: later calls are no-ops and Err reports it.
type Encoder struct {
	w     io.Writer
	order binary.ByteOrder
	buf   [8]byte
	n     int64
	err   error
}

// NewEncoder returns a little-endian Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, order: binary.LittleEndian}
}

// Err returns the first write error.
func (e *Encoder) Err() error { return e.err }

// Written returns the number of bytes written so far.
func (e *Encoder) Written() int64 { return e.n }

// Bytes writes p verbatim.
func (e *Encoder) Bytes(p []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(p)
	e.n += int64(n)
	e.err = err
}

// Uint16 writes a 16-bit unsigned integer.
func (e *Encoder) Uint16(v uint16) {
	e.order.PutUint16(e.buf[:2], v)
	e.Bytes(e.buf[:2])
}

// Uint32 writes a 32-bit unsigned integer.
func (e *Encoder) Uint32(v uint32) {
	e.order.PutUint32(e.buf[:4], v)
	e.Bytes(e.buf[:4])
}

// Float32 writes an IEEE 754 single precision float.
func (e *Encoder) Float32(v float32) {
	e.Uint32(math.Float32bits(v))
}

// FixedString writes s into an n-byte field, NUL padded. Longer strings
// are truncated.
func (e *Encoder) FixedString(s string, n int) {
	p := make([]byte, n)
	copy(p, s)
	e.Bytes(p)
}

// Zeros writes n zero bytes.
func (e *Encoder) Zeros(n int) {
	e.Bytes(make([]byte, n))
}
