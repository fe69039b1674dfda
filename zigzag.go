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

import "fmt"

// Zig-zag LEB128 varints. 32-bit values take at most 5 bytes. 64-bit values
// take at most 9: after eight continuation bytes the ninth byte carries the
// remaining 8 bits verbatim, with no continuation bit.

const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 9
)

func zigZag32(v int32) uint32  { return uint32((v << 1) ^ (v >> 31)) }
func zigZag64(v int64) uint64  { return uint64((v << 1) ^ (v >> 63)) }
func unZigZag32(u uint32) int32 { return int32(u>>1) ^ -int32(u&1) }
func unZigZag64(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

// ZigZagSize32 returns the exact number of bytes WriteZigZag32 produces.
func ZigZagSize32(v int32) int {
	u := zigZag32(v)
	size := 1
	for u >= 0x80 {
		u >>= 7
		size++
	}
	return size
}

// ZigZagSize64 returns the exact number of bytes WriteZigZag64 produces.
func ZigZagSize64(v int64) int {
	u := zigZag64(v)
	size := 1
	for u >= 0x80 {
		if size == maxVarint64Bytes-1 {
			return maxVarint64Bytes
		}
		u >>= 7
		size++
	}
	return size
}

// WriteZigZag32 writes v as a zig-zag varint of at most 5 bytes.
func (b *WriteBuffer) WriteZigZag32(v int32) {
	u := zigZag32(v)
	for u >= 0x80 {
		b.writeByte(byte(u) | 0x80)
		u >>= 7
	}
	b.writeByte(byte(u))
}

// WriteZigZag64 writes v as a zig-zag varint of at most 9 bytes.
func (b *WriteBuffer) WriteZigZag64(v int64) {
	u := zigZag64(v)
	for i := 0; i < maxVarint64Bytes-1; i++ {
		if u < 0x80 {
			b.writeByte(byte(u))
			return
		}
		b.writeByte(byte(u) | 0x80)
		u >>= 7
	}
	b.writeByte(byte(u))
}

// ReadZigZag32 reads a zig-zag varint of at most 5 bytes.
func (b *ReadBuffer) ReadZigZag32() int32 {
	var u uint32
	var shift uint
	for i := 0; i < maxVarint32Bytes; i++ {
		by := b.readByte()
		if b.err != nil {
			return 0
		}
		u |= uint32(by&0x7f) << shift
		if by < 0x80 {
			return unZigZag32(u)
		}
		shift += 7
	}
	b.fail(fmt.Errorf("%w: varint32 longer than %d bytes", ErrCorrupt, maxVarint32Bytes))
	return 0
}

// ReadZigZag64 reads a zig-zag varint of at most 9 bytes.
func (b *ReadBuffer) ReadZigZag64() int64 {
	var u uint64
	var shift uint
	for i := 0; i < maxVarint64Bytes-1; i++ {
		by := b.readByte()
		if b.err != nil {
			return 0
		}
		u |= uint64(by&0x7f) << shift
		if by < 0x80 {
			return unZigZag64(u)
		}
		shift += 7
	}
	by := b.readByte()
	if b.err != nil {
		return 0
	}
	u |= uint64(by) << 56
	return unZigZag64(u)
}
