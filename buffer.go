// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package pickle

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WriteBuffer is a growable big-endian byte buffer confined to a single
// encode session. Not safe for concurrent use.
type WriteBuffer struct {
	data []byte
}

// NewWriteBuffer returns a buffer with the given initial capacity.
func NewWriteBuffer(capacity int) *WriteBuffer {
	if capacity < 16 {
		capacity = 16
	}
	return &WriteBuffer{data: make([]byte, 0, capacity)}
}

// Pos returns the number of bytes written so far.
func (b *WriteBuffer) Pos() int { return len(b.data) }

// Bytes returns the written bytes. The slice aliases the buffer and is
// invalidated by further writes or Reset.
func (b *WriteBuffer) Bytes() []byte { return b.data }

// Reset discards the contents but keeps the allocation.
func (b *WriteBuffer) Reset() { b.data = b.data[:0] }

func (b *WriteBuffer) writeByte(v byte) { b.data = append(b.data, v) }

func (b *WriteBuffer) WriteInt8(v int8)   { b.writeByte(byte(v)) }
func (b *WriteBuffer) WriteUint8(v uint8) { b.writeByte(v) }

func (b *WriteBuffer) WriteBool(v bool) {
	if v {
		b.writeByte(1)
	} else {
		b.writeByte(0)
	}
}

func (b *WriteBuffer) WriteUint16(v uint16) {
	b.data = binary.BigEndian.AppendUint16(b.data, v)
}

func (b *WriteBuffer) WriteInt16(v int16) { b.WriteUint16(uint16(v)) }

func (b *WriteBuffer) WriteUint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

func (b *WriteBuffer) WriteInt32(v int32) { b.WriteUint32(uint32(v)) }

func (b *WriteBuffer) WriteUint64(v uint64) {
	b.data = binary.BigEndian.AppendUint64(b.data, v)
}

func (b *WriteBuffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

func (b *WriteBuffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }
func (b *WriteBuffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

func (b *WriteBuffer) WriteBytes(p []byte) { b.data = append(b.data, p...) }

// ReadBuffer wraps a byte slice with a cursor and a sticky error. Once a
// read fails every subsequent read returns the zero value, so decode chains
// can defer error checks to well-defined points.
type ReadBuffer struct {
	data []byte
	pos  int
	err  error
}

// NewReadBuffer wraps data without copying it.
func NewReadBuffer(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

// Pos returns the cursor position.
func (b *ReadBuffer) Pos() int { return b.pos }

// Remaining returns the number of unread bytes.
func (b *ReadBuffer) Remaining() int { return len(b.data) - b.pos }

// Err returns the sticky error, if any.
func (b *ReadBuffer) Err() error { return b.err }

func (b *ReadBuffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Seek moves the cursor to an absolute position.
func (b *ReadBuffer) Seek(pos int) error {
	if pos < 0 || pos > len(b.data) {
		err := fmt.Errorf("%w: seek to %d outside buffer of %d bytes", ErrCorrupt, pos, len(b.data))
		b.fail(err)
		return err
	}
	b.pos = pos
	return nil
}

func (b *ReadBuffer) require(n int) bool {
	if b.err != nil {
		return false
	}
	if b.pos+n > len(b.data) {
		b.fail(fmt.Errorf("%w: need %d bytes at position %d, have %d", ErrCorrupt, n, b.pos, len(b.data)-b.pos))
		return false
	}
	return true
}

func (b *ReadBuffer) readByte() byte {
	if !b.require(1) {
		return 0
	}
	v := b.data[b.pos]
	b.pos++
	return v
}

func (b *ReadBuffer) ReadInt8() int8   { return int8(b.readByte()) }
func (b *ReadBuffer) ReadUint8() uint8 { return b.readByte() }

// PeekInt8 returns the next byte without advancing the cursor.
func (b *ReadBuffer) PeekInt8() int8 {
	if !b.require(1) {
		return 0
	}
	return int8(b.data[b.pos])
}

func (b *ReadBuffer) ReadBool() bool { return b.readByte() != 0 }

func (b *ReadBuffer) ReadUint16() uint16 {
	if !b.require(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v
}

func (b *ReadBuffer) ReadInt16() int16 { return int16(b.ReadUint16()) }

func (b *ReadBuffer) ReadUint32() uint32 {
	if !b.require(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v
}

func (b *ReadBuffer) ReadInt32() int32 { return int32(b.ReadUint32()) }

func (b *ReadBuffer) ReadUint64() uint64 {
	if !b.require(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v
}

func (b *ReadBuffer) ReadInt64() int64 { return int64(b.ReadUint64()) }

func (b *ReadBuffer) ReadFloat32() float32 { return math.Float32frombits(b.ReadUint32()) }
func (b *ReadBuffer) ReadFloat64() float64 { return math.Float64frombits(b.ReadUint64()) }

// ReadBytes returns n bytes aliasing the underlying slice.
func (b *ReadBuffer) ReadBytes(n int) []byte {
	if n < 0 {
		b.fail(fmt.Errorf("%w: negative length %d", ErrCorrupt, n))
		return nil
	}
	if !b.require(n) {
		return nil
	}
	v := b.data[b.pos : b.pos+n : b.pos+n]
	b.pos += n
	return v
}
