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
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Packed array codec. Wire form: array marker, element marker, varint
// count, payload. Byte arrays are raw blobs, bool arrays pack to a bitset,
// int32/int64 arrays pick fixed or varint form by sampling, everything else
// is fixed-width or length-prefixed per element.

// arraySampleSize bounds how many leading elements the width heuristic
// inspects.
const arraySampleSize = 32

func markerForVal(v valueKind) int8 {
	switch v {
	case valBool:
		return markerBool
	case valInt8:
		return markerInt8
	case valInt16:
		return markerInt16
	case valChar:
		return markerChar
	case valInt32:
		return markerInt32
	case valInt64:
		return markerInt64
	case valFloat32:
		return markerFloat32
	case valFloat64:
		return markerFloat64
	case valString:
		return markerString
	case valUUID:
		return markerUUID
	default:
		return markerNull
	}
}

func (r *registry) buildArrayCodec(e *TypeExpr) (writerFn, readerFn, sizerFn, error) {
	elemMarker := markerForVal(e.Elem.Val)
	if elemMarker == markerNull {
		return nil, nil, nil, fmt.Errorf("%w: array element %s", ErrUnsupportedType, e.Elem.Type)
	}
	t := e.Type
	fixedLen := e.FixedLen
	isSlice := fixedLen < 0
	elemVal := e.Elem.Val
	unsignedByte := e.Elem.Type.Kind() == reflect.Uint8

	write := func(s *encodeState, v reflect.Value) {
		if isSlice && v.IsNil() {
			s.buf.WriteInt8(markerNull)
			return
		}
		n := v.Len()
		buf := s.buf
		buf.WriteInt8(markerArray)
		buf.WriteInt8(elemMarker)
		buf.WriteZigZag32(int32(n))
		writeArrayPayload(s, elemVal, unsignedByte, v, n)
	}

	read := func(s *decodeState, v reflect.Value) {
		switch m := s.buf.ReadInt8(); m {
		case markerNull:
			if !isSlice {
				s.fail(fmt.Errorf("%w: null for fixed array %s", ErrCorrupt, t))
				return
			}
			v.Set(reflect.Zero(t))
		case markerArray:
			if em := s.buf.ReadInt8(); em != elemMarker {
				s.fail(fmt.Errorf("%w: expected %s array, found %s elements", ErrCorrupt, markerName(elemMarker), markerName(em)))
				return
			}
			n := s.buf.ReadZigZag32()
			if s.err() != nil {
				return
			}
			if n < 0 {
				s.fail(fmt.Errorf("%w: negative array length %d", ErrCorrupt, n))
				return
			}
			var out reflect.Value
			if isSlice {
				out = reflect.MakeSlice(t, int(n), int(n))
			} else {
				if int(n) != fixedLen {
					s.fail(fmt.Errorf("%w: fixed array %s expects %d elements, found %d", ErrCorrupt, t, fixedLen, n))
					return
				}
				out = v
			}
			readArrayPayload(s, elemVal, unsignedByte, out, int(n))
			if s.err() == nil && isSlice {
				v.Set(out)
			}
		default:
			s.fail(fmt.Errorf("%w: expected array, found %s", ErrCorrupt, markerName(m)))
		}
	}

	size := func(v reflect.Value) int {
		if isSlice && v.IsNil() {
			return 1
		}
		n := v.Len()
		return 2 + ZigZagSize32(int32(n)) + sizeArrayPayload(elemVal, v, n)
	}

	return write, read, size, nil
}

func writeArrayPayload(s *encodeState, elemVal valueKind, unsignedByte bool, v reflect.Value, n int) {
	buf := s.buf
	switch elemVal {
	case valInt8:
		if unsignedByte && v.Kind() == reflect.Slice {
			buf.WriteBytes(v.Bytes())
			return
		}
		for i := 0; i < n; i++ {
			if unsignedByte {
				buf.WriteUint8(uint8(v.Index(i).Uint()))
			} else {
				buf.WriteInt8(int8(v.Index(i).Int()))
			}
		}
	case valBool:
		packed := make([]byte, (n+7)/8)
		for i := 0; i < n; i++ {
			if v.Index(i).Bool() {
				packed[i>>3] |= 1 << (i & 7)
			}
		}
		buf.WriteBytes(packed)
	case valInt16:
		for i := 0; i < n; i++ {
			buf.WriteInt16(int16(v.Index(i).Int()))
		}
	case valChar:
		for i := 0; i < n; i++ {
			buf.WriteUint16(uint16(v.Index(i).Uint()))
		}
	case valInt32:
		if varint32Worthwhile(v, n) {
			buf.WriteInt8(arrayFormVarint)
			for i := 0; i < n; i++ {
				buf.WriteZigZag32(int32(v.Index(i).Int()))
			}
			return
		}
		buf.WriteInt8(arrayFormFixed)
		for i := 0; i < n; i++ {
			buf.WriteInt32(int32(v.Index(i).Int()))
		}
	case valInt64:
		if varint64Worthwhile(v, n) {
			buf.WriteInt8(arrayFormVarint)
			for i := 0; i < n; i++ {
				buf.WriteZigZag64(v.Index(i).Int())
			}
			return
		}
		buf.WriteInt8(arrayFormFixed)
		for i := 0; i < n; i++ {
			buf.WriteInt64(v.Index(i).Int())
		}
	case valFloat32:
		for i := 0; i < n; i++ {
			buf.WriteFloat32(float32(v.Index(i).Float()))
		}
	case valFloat64:
		for i := 0; i < n; i++ {
			buf.WriteFloat64(v.Index(i).Float())
		}
	case valString:
		for i := 0; i < n; i++ {
			str := v.Index(i).String()
			buf.WriteZigZag32(int32(len(str)))
			buf.WriteBytes([]byte(str))
		}
	case valUUID:
		for i := 0; i < n; i++ {
			u := v.Index(i).Interface().(uuid.UUID)
			buf.WriteBytes(u[:])
		}
	}
}

func readArrayPayload(s *decodeState, elemVal valueKind, unsignedByte bool, out reflect.Value, n int) {
	buf := s.buf
	switch elemVal {
	case valInt8:
		raw := buf.ReadBytes(n)
		if buf.err != nil {
			return
		}
		if unsignedByte && out.Kind() == reflect.Slice {
			reflect.Copy(out, reflect.ValueOf(raw))
			return
		}
		for i := 0; i < n; i++ {
			if unsignedByte {
				out.Index(i).SetUint(uint64(raw[i]))
			} else {
				out.Index(i).SetInt(int64(int8(raw[i])))
			}
		}
	case valBool:
		packed := buf.ReadBytes((n + 7) / 8)
		if buf.err != nil {
			return
		}
		for i := 0; i < n; i++ {
			out.Index(i).SetBool(packed[i>>3]&(1<<(i&7)) != 0)
		}
	case valInt16:
		for i := 0; i < n; i++ {
			out.Index(i).SetInt(int64(buf.ReadInt16()))
		}
	case valChar:
		for i := 0; i < n; i++ {
			out.Index(i).SetUint(uint64(buf.ReadUint16()))
		}
	case valInt32:
		switch form := buf.ReadInt8(); form {
		case arrayFormVarint:
			for i := 0; i < n; i++ {
				out.Index(i).SetInt(int64(buf.ReadZigZag32()))
			}
		case arrayFormFixed:
			for i := 0; i < n; i++ {
				out.Index(i).SetInt(int64(buf.ReadInt32()))
			}
		default:
			s.fail(fmt.Errorf("%w: unknown int32 array form %d", ErrCorrupt, form))
		}
	case valInt64:
		switch form := buf.ReadInt8(); form {
		case arrayFormVarint:
			for i := 0; i < n; i++ {
				out.Index(i).SetInt(buf.ReadZigZag64())
			}
		case arrayFormFixed:
			for i := 0; i < n; i++ {
				out.Index(i).SetInt(buf.ReadInt64())
			}
		default:
			s.fail(fmt.Errorf("%w: unknown int64 array form %d", ErrCorrupt, form))
		}
	case valFloat32:
		for i := 0; i < n; i++ {
			out.Index(i).SetFloat(float64(buf.ReadFloat32()))
		}
	case valFloat64:
		for i := 0; i < n; i++ {
			out.Index(i).SetFloat(buf.ReadFloat64())
		}
	case valString:
		for i := 0; i < n; i++ {
			out.Index(i).SetString(readStringPayload(buf))
			if buf.err != nil {
				return
			}
		}
	case valUUID:
		for i := 0; i < n; i++ {
			raw := buf.ReadBytes(16)
			if buf.err != nil {
				return
			}
			var u uuid.UUID
			copy(u[:], raw)
			out.Index(i).Set(reflect.ValueOf(u))
		}
	}
}

// varint32Worthwhile samples the leading elements and picks the varint form
// when the average encoded size undercuts the fixed 4-byte width with
// margin. The margin widens when the sample is partial, so only clearly
// small-valued arrays pay the varint overhead.
func varint32Worthwhile(v reflect.Value, n int) bool {
	if n == 0 {
		return false
	}
	sample := n
	margin := 1.0
	if sample > arraySampleSize {
		sample = arraySampleSize
		margin = 2.0
	}
	total := 0
	for i := 0; i < sample; i++ {
		total += ZigZagSize32(int32(v.Index(i).Int()))
	}
	return float64(total)/float64(sample) < 4.0-margin
}

func varint64Worthwhile(v reflect.Value, n int) bool {
	if n == 0 {
		return false
	}
	sample := n
	margin := 1.0
	if sample > arraySampleSize {
		sample = arraySampleSize
		margin = 2.0
	}
	total := 0
	for i := 0; i < sample; i++ {
		total += ZigZagSize64(v.Index(i).Int())
	}
	return float64(total)/float64(sample) < 8.0-margin
}

// sizeArrayPayload returns an upper bound covering whichever payload form
// the writer picks.
func sizeArrayPayload(elemVal valueKind, v reflect.Value, n int) int {
	switch elemVal {
	case valInt8:
		return n
	case valBool:
		return (n + 7) / 8
	case valInt16, valChar:
		return 2 * n
	case valInt32:
		return 1 + 5*n
	case valInt64:
		return 1 + 9*n
	case valFloat32:
		return 4 * n
	case valFloat64:
		return 8 * n
	case valString:
		total := 0
		for i := 0; i < n; i++ {
			l := v.Index(i).Len()
			total += ZigZagSize32(int32(l)) + l
		}
		return total
	case valUUID:
		return 16 * n
	default:
		return 0
	}
}
