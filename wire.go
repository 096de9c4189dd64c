// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// ErrOutsideBoundary is returned whenever a read would run past the end of
// the input buffer, mirroring the teacher's boundary-checked accessors
// instead of letting a slice index panic bubble out of the parser.
var ErrOutsideBoundary = errors.New("mixin: read outside buffer boundary")

// cursor is a boundary-checked big-endian byte reader/writer used by the
// class-file model's wire codec (§4.1). Every read returns
// ErrOutsideBoundary instead of panicking, the same defensive posture the
// teacher's ReadUint32/ReadUint16/structUnpack family uses over its
// memory-mapped input.
type cursor struct {
	data []byte
	pos  uint32
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) remaining() uint32 { return uint32(len(c.data)) - c.pos }

func (c *cursor) need(n uint32) error {
	if n > c.remaining() {
		return ErrOutsideBoundary
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) i64() (int64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return int64(v), nil
}

func (c *cursor) f64() (float64, error) {
	bits, err := c.i64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

func (c *cursor) bytesN(n uint32) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u16()
	if err != nil {
		return "", err
	}
	b, err := c.bytesN(uint32(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) boolean() (bool, error) {
	v, err := c.u8()
	return v != 0, err
}

// writer is the append-only counterpart to cursor, used by the emitter.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) i64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}
func (w *writer) f64(v float64)   { w.i64(int64(math.Float64bits(v))) }
func (w *writer) bytesN(b []byte) { w.buf.Write(b) }
func (w *writer) str(s string) {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	w.u16(uint16(len(s)))
	w.buf.WriteString(s)
}
func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) Bytes() []byte { return w.buf.Bytes() }
