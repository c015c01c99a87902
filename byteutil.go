package bintree

import (
	"encoding/binary"
	"io"
	"math"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 64 {
			c = 64
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func appendRaw(buf []byte, chunk []byte) []byte {
	n := len(chunk)
	off, buf := grow(buf, n)
	copy(buf[off:], chunk)
	return buf
}

// bytesBuilder accumulates big-endian fixed-width values.
type bytesBuilder struct {
	Buf []byte
}

var _ io.Writer = (*bytesBuilder)(nil)

func (bb *bytesBuilder) Len() int {
	return len(bb.Buf)
}

func (bb *bytesBuilder) Grow(n int) (off int) {
	off, bb.Buf = grow(bb.Buf, n)
	return
}

func (bb *bytesBuilder) Reset() {
	bb.Buf = nil
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) AppendRaw(b []byte) {
	bb.Buf = appendRaw(bb.Buf, b)
}

func (bb *bytesBuilder) AppendByte(v byte) {
	off := bb.Grow(1)
	bb.Buf[off] = v
}

func (bb *bytesBuilder) AppendBool(v bool) {
	if v {
		bb.AppendByte(1)
	} else {
		bb.AppendByte(0)
	}
}

func (bb *bytesBuilder) AppendUint16(v uint16) {
	off := bb.Grow(2)
	binary.BigEndian.PutUint16(bb.Buf[off:], v)
}

func (bb *bytesBuilder) AppendInt16(v int16) {
	bb.AppendUint16(uint16(v))
}

func (bb *bytesBuilder) AppendUint32(v uint32) {
	off := bb.Grow(4)
	binary.BigEndian.PutUint32(bb.Buf[off:], v)
}

func (bb *bytesBuilder) AppendInt32(v int32) {
	bb.AppendUint32(uint32(v))
}

func (bb *bytesBuilder) AppendUint64(v uint64) {
	off := bb.Grow(8)
	binary.BigEndian.PutUint64(bb.Buf[off:], v)
}

func (bb *bytesBuilder) AppendFloat32(v float32) {
	bb.AppendUint32(math.Float32bits(v))
}

func (bb *bytesBuilder) AppendFloat64(v float64) {
	bb.AppendUint64(math.Float64bits(v))
}

// AppendString writes a length-prefixed string. Strings longer than
// MaxStringLen cannot be represented.
func (bb *bytesBuilder) AppendString(s string) bool {
	if len(s) > MaxStringLen {
		return false
	}
	off := bb.Grow(2 + len(s))
	binary.BigEndian.PutUint16(bb.Buf[off:], uint16(len(s)))
	copy(bb.Buf[off+2:], s)
	return true
}

func (bb *bytesBuilder) AppendNullString() {
	bb.AppendUint16(nullStringLen)
}
