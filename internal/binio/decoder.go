// Package binio decodes fixed-width scalars from a sequential byte source
// in a selectable byte order.
package binio

import (
	"encoding/binary"
	"io"
	"math"
)

// Decoder reads fixed-width integers and floats from an io.Reader.
//
// The zero byte order is little endian, which is what every format in
// this module uses. A Decoder is not safe for concurrent use.
type Decoder struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

// NewDecoder returns a little-endian Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, order: binary.LittleEndian}
}

// SetByteOrder switches the byte order used by subsequent reads.
func (d *Decoder) SetByteOrder(order binary.ByteOrder) {
	d.order = order
}

// ByteOrder returns the current byte order.
func (d *Decoder) ByteOrder() binary.ByteOrder {
	return d.order
}

func (d *Decoder) fill(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return nil, err
	}
	return d.buf[:n], nil
}

// Uint8 reads one byte.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a 16-bit unsigned integer.
func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.fill(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// Uint32 reads a 32-bit unsigned integer.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.fill(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// Int32 reads a 32-bit signed integer.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err //nolint:gosec // two's complement reinterpretation
}

// Uint64 reads a 64-bit unsigned integer.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.fill(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

// Float32 reads an IEEE 754 single precision float.
func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Float64 reads an IEEE 754 double precision float.
func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Bytes reads exactly n bytes into a new slice.
func (d *Decoder) Bytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if _, err := io.ReadFull(d.r, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FixedString reads an n-byte field and returns it with trailing NULs removed.
func (d *Decoder) FixedString(n int) (string, error) {
	p, err := d.Bytes(n)
	if err != nil {
		return "", err
	}
	end := len(p)
	for end > 0 && p[end-1] == 0 {
		end--
	}
	for i := 0; i < end; i++ {
		if p[i] == 0 {
			end = i
			break
		}
	}
	return string(p[:end]), nil
}

// Skip discards n bytes.
func (d *Decoder) Skip(n int64) error {
	if s, ok := d.r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, d.r, n)
	return err
}
