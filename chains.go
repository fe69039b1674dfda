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
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
)

// buildChain compiles a TypeExpr into its writer/reader/sizer triple.
// Containers wrap their element codec, so an arbitrarily nested type
// becomes one closure chain built right-to-left at construction time.
func (r *registry) buildChain(e *TypeExpr, ownerOrd int) (writerFn, readerFn, sizerFn, error) {
	switch e.Kind {
	case exprValue:
		return r.buildValueCodec(e, ownerOrd)
	case exprOptional:
		return r.buildOptionalCodec(e, ownerOrd)
	case exprList:
		return r.buildListCodec(e, ownerOrd)
	case exprMap:
		return r.buildMapCodec(e, ownerOrd)
	case exprArray:
		return r.buildArrayCodec(e)
	default:
		return nil, nil, nil, fmt.Errorf("%w: unhandled type expression for %s", ErrUnsupportedType, e.Type)
	}
}

// ==========================================================================
// Leaf values
// ==========================================================================

func (r *registry) buildValueCodec(e *TypeExpr, ownerOrd int) (writerFn, readerFn, sizerFn, error) {
	switch e.Val {
	case valBool:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerBool)
				s.buf.WriteBool(v.Bool())
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerBool) {
					v.SetBool(s.buf.ReadBool())
				}
			}, func(reflect.Value) int { return 2 }, nil
	case valInt8:
		if e.Type.Kind() == reflect.Uint8 {
			return func(s *encodeState, v reflect.Value) {
					s.buf.WriteInt8(markerInt8)
					s.buf.WriteUint8(uint8(v.Uint()))
				}, func(s *decodeState, v reflect.Value) {
					if expectMarker(s, markerInt8) {
						v.SetUint(uint64(s.buf.ReadUint8()))
					}
				}, func(reflect.Value) int { return 2 }, nil
		}
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerInt8)
				s.buf.WriteInt8(int8(v.Int()))
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerInt8) {
					v.SetInt(int64(s.buf.ReadInt8()))
				}
			}, func(reflect.Value) int { return 2 }, nil
	case valInt16:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerInt16)
				s.buf.WriteInt16(int16(v.Int()))
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerInt16) {
					v.SetInt(int64(s.buf.ReadInt16()))
				}
			}, func(reflect.Value) int { return 3 }, nil
	case valChar:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerChar)
				s.buf.WriteUint16(uint16(v.Uint()))
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerChar) {
					v.SetUint(uint64(s.buf.ReadUint16()))
				}
			}, func(reflect.Value) int { return 3 }, nil
	case valInt32:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerInt32)
				s.buf.WriteZigZag32(int32(v.Int()))
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerInt32) {
					v.SetInt(int64(s.buf.ReadZigZag32()))
				}
			}, func(v reflect.Value) int {
				return 1 + ZigZagSize32(int32(v.Int()))
			}, nil
	case valInt64:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerInt64)
				s.buf.WriteZigZag64(v.Int())
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerInt64) {
					v.SetInt(s.buf.ReadZigZag64())
				}
			}, func(v reflect.Value) int {
				return 1 + ZigZagSize64(v.Int())
			}, nil
	case valFloat32:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerFloat32)
				s.buf.WriteFloat32(float32(v.Float()))
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerFloat32) {
					v.SetFloat(float64(s.buf.ReadFloat32()))
				}
			}, func(reflect.Value) int { return 5 }, nil
	case valFloat64:
		return func(s *encodeState, v reflect.Value) {
				s.buf.WriteInt8(markerFloat64)
				s.buf.WriteFloat64(v.Float())
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerFloat64) {
					v.SetFloat(s.buf.ReadFloat64())
				}
			}, func(reflect.Value) int { return 9 }, nil
	case valString:
		return func(s *encodeState, v reflect.Value) {
				writeStringPayload(s.buf, v.String())
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerString) {
					v.SetString(readStringPayload(s.buf))
				}
			}, func(v reflect.Value) int {
				return 1 + ZigZagSize32(int32(v.Len())) + v.Len()
			}, nil
	case valUUID:
		return func(s *encodeState, v reflect.Value) {
				u := v.Interface().(uuid.UUID)
				s.buf.WriteInt8(markerUUID)
				s.buf.WriteBytes(u[:])
			}, func(s *decodeState, v reflect.Value) {
				if expectMarker(s, markerUUID) {
					var u uuid.UUID
					copy(u[:], s.buf.ReadBytes(16))
					v.Set(reflect.ValueOf(u))
				}
			}, func(reflect.Value) int { return 17 }, nil
	case valEnum:
		ord, ok := r.ordinals[e.Type]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: enum %s was not discovered", ErrUnknownType, e.Type)
		}
		return func(s *encodeState, v reflect.Value) {
				r.writeEnumValue(s, ord, v.Int())
			}, func(s *decodeState, v reflect.Value) {
				v.SetInt(r.readEnumValue(s, ord))
			}, func(v reflect.Value) int {
				return r.sizeEnumValue(ord, v.Int())
			}, nil
	case valStruct:
		return r.buildStructCodec(e)
	case valVariant:
		vc, err := r.newVariantCodec(e.Type)
		if err != nil {
			return nil, nil, nil, err
		}
		return vc.write, vc.read, vc.size, nil
	case valSame:
		return r.buildSameTypeCodec(ownerOrd), r.buildSameTypeReader(ownerOrd), r.buildSameTypeSizer(ownerOrd), nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: unhandled value kind for %s", ErrUnsupportedType, e.Type)
	}
}

func expectMarker(s *decodeState, want int8) bool {
	m := s.buf.ReadInt8()
	if s.err() != nil {
		return false
	}
	if m != want {
		s.fail(fmt.Errorf("%w: expected %s, found %s", ErrCorrupt, markerName(want), markerName(m)))
		return false
	}
	return true
}

func writeStringPayload(buf *WriteBuffer, v string) {
	buf.WriteInt8(markerString)
	buf.WriteZigZag32(int32(len(v)))
	buf.WriteBytes([]byte(v))
}

func readStringPayload(buf *ReadBuffer) string {
	n := buf.ReadZigZag32()
	if buf.err != nil {
		return ""
	}
	if n < 0 {
		buf.fail(fmt.Errorf("%w: negative string length %d", ErrCorrupt, n))
		return ""
	}
	return string(buf.ReadBytes(int(n)))
}

func (r *registry) buildStructCodec(e *TypeExpr) (writerFn, readerFn, sizerFn, error) {
	t := e.Type
	nullable := e.Nullable
	if nullable {
		t = t.Elem()
	}
	ord, ok := r.ordinals[t]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: struct %s was not discovered", ErrUnknownType, t)
	}
	if nullable {
		ptrType := e.Type
		return func(s *encodeState, v reflect.Value) {
				if v.IsNil() {
					s.buf.WriteInt8(markerNull)
					return
				}
				r.writeStructValue(s, ord, v.Elem())
			}, func(s *decodeState, v reflect.Value) {
				switch m := s.buf.ReadInt8(); m {
				case markerNull:
					v.Set(reflect.Zero(ptrType))
				case markerStruct:
					p := reflect.New(t)
					r.readStructRecord(s, ord, p.Elem())
					if s.err() == nil {
						v.Set(p)
					}
				default:
					s.fail(fmt.Errorf("%w: expected struct, found %s", ErrCorrupt, markerName(m)))
				}
			}, func(v reflect.Value) int {
				if v.IsNil() {
					return 1
				}
				return r.sizeStructValue(ord, v.Elem())
			}, nil
	}
	return func(s *encodeState, v reflect.Value) {
			r.writeStructValue(s, ord, v)
		}, func(s *decodeState, v reflect.Value) {
			if expectMarker(s, markerStruct) {
				r.readStructRecord(s, ord, v)
			}
		}, func(v reflect.Value) int {
			return r.sizeStructValue(ord, v)
		}, nil
}

// Same-type references cover the direct self-recursion of a struct through
// a pointer field. The record needs neither ordinal nor name: the type is
// the enclosing one by construction.
func (r *registry) buildSameTypeCodec(ownerOrd int) writerFn {
	return func(s *encodeState, v reflect.Value) {
		if v.IsNil() {
			s.buf.WriteInt8(markerNull)
			return
		}
		if !s.enter() {
			return
		}
		e := r.entries[ownerOrd]
		s.buf.WriteInt8(markerSameType)
		s.buf.WriteZigZag32(int32(len(e.fields)))
		elem := v.Elem()
		for i := range e.fields {
			e.fields[i].write(s, elem.Field(e.fields[i].index))
			if s.err != nil {
				return
			}
		}
		s.leave()
	}
}

func (r *registry) buildSameTypeReader(ownerOrd int) readerFn {
	return func(s *decodeState, v reflect.Value) {
		switch m := s.buf.ReadInt8(); m {
		case markerNull:
			v.Set(reflect.Zero(v.Type()))
		case markerSameType:
			count := s.buf.ReadZigZag32()
			if s.err() != nil {
				return
			}
			e := r.entries[ownerOrd]
			p := reflect.New(e.typ)
			r.readFields(s, e, int(count), p.Elem())
			if s.err() == nil {
				v.Set(p)
			}
		default:
			s.fail(fmt.Errorf("%w: expected same-type reference, found %s", ErrCorrupt, markerName(m)))
		}
	}
}

func (r *registry) buildSameTypeSizer(ownerOrd int) sizerFn {
	return func(v reflect.Value) int {
		if v.IsNil() {
			return 1
		}
		e := r.entries[ownerOrd]
		n := 1 + ZigZagSize32(int32(len(e.fields)))
		elem := v.Elem()
		for i := range e.fields {
			n += e.fields[i].size(elem.Field(e.fields[i].index))
		}
		return n
	}
}

// ==========================================================================
// Containers
// ==========================================================================

func (r *registry) buildOptionalCodec(e *TypeExpr, ownerOrd int) (writerFn, readerFn, sizerFn, error) {
	info, ok := getOptionalInfo(e.Type)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s is not an optional type", ErrUnsupportedType, e.Type)
	}
	write, read, size, err := r.buildChain(e.Elem, ownerOrd)
	if err != nil {
		return nil, nil, nil, err
	}
	return func(s *encodeState, v reflect.Value) {
			if !v.Field(info.hasIndex).Bool() {
				s.buf.WriteInt8(markerOptionalEmpty)
				return
			}
			s.buf.WriteInt8(markerOptionalPresent)
			write(s, v.Field(info.valueIndex))
		}, func(s *decodeState, v reflect.Value) {
			switch m := s.buf.ReadInt8(); m {
			case markerOptionalEmpty:
				v.Set(reflect.Zero(v.Type()))
			case markerOptionalPresent:
				v.Field(info.hasIndex).SetBool(true)
				read(s, v.Field(info.valueIndex))
			default:
				s.fail(fmt.Errorf("%w: expected optional, found %s", ErrCorrupt, markerName(m)))
			}
		}, func(v reflect.Value) int {
			if !v.Field(info.hasIndex).Bool() {
				return 1
			}
			return 1 + size(v.Field(info.valueIndex))
		}, nil
}

func (r *registry) buildListCodec(e *TypeExpr, ownerOrd int) (writerFn, readerFn, sizerFn, error) {
	write, read, size, err := r.buildChain(e.Elem, ownerOrd)
	if err != nil {
		return nil, nil, nil, err
	}
	sliceType := e.Type
	return func(s *encodeState, v reflect.Value) {
			if v.IsNil() {
				s.buf.WriteInt8(markerNull)
				return
			}
			if !s.enter() {
				return
			}
			s.buf.WriteInt8(markerList)
			s.buf.WriteZigZag32(int32(v.Len()))
			for i := 0; i < v.Len(); i++ {
				write(s, v.Index(i))
				if s.err != nil {
					return
				}
			}
			s.leave()
		}, func(s *decodeState, v reflect.Value) {
			switch m := s.buf.ReadInt8(); m {
			case markerNull:
				v.Set(reflect.Zero(sliceType))
			case markerList:
				if !s.enter() {
					return
				}
				n := s.buf.ReadZigZag32()
				if s.err() != nil {
					return
				}
				if n < 0 {
					s.fail(fmt.Errorf("%w: negative list length %d", ErrCorrupt, n))
					return
				}
				out := reflect.MakeSlice(sliceType, int(n), int(n))
				for i := 0; i < int(n); i++ {
					read(s, out.Index(i))
					if s.err() != nil {
						return
					}
				}
				v.Set(out)
				s.leave()
			default:
				s.fail(fmt.Errorf("%w: expected list, found %s", ErrCorrupt, markerName(m)))
			}
		}, func(v reflect.Value) int {
			if v.IsNil() {
				return 1
			}
			n := 1 + ZigZagSize32(int32(v.Len()))
			for i := 0; i < v.Len(); i++ {
				n += size(v.Index(i))
			}
			return n
		}, nil
}

func (r *registry) buildMapCodec(e *TypeExpr, ownerOrd int) (writerFn, readerFn, sizerFn, error) {
	writeKey, readKey, sizeKey, err := r.buildChain(e.Key, ownerOrd)
	if err != nil {
		return nil, nil, nil, err
	}
	writeValue, readValue, sizeValue, err := r.buildChain(e.Value, ownerOrd)
	if err != nil {
		return nil, nil, nil, err
	}
	mapType := e.Type
	keyType := mapType.Key()
	valueType := mapType.Elem()
	return func(s *encodeState, v reflect.Value) {
			if v.IsNil() {
				s.buf.WriteInt8(markerNull)
				return
			}
			if !s.enter() {
				return
			}
			s.buf.WriteInt8(markerMap)
			s.buf.WriteZigZag32(int32(v.Len()))
			keys := v.MapKeys()
			sortMapKeys(keys)
			for _, k := range keys {
				writeKey(s, k)
				if s.err != nil {
					return
				}
				writeValue(s, v.MapIndex(k))
				if s.err != nil {
					return
				}
			}
			s.leave()
		}, func(s *decodeState, v reflect.Value) {
			switch m := s.buf.ReadInt8(); m {
			case markerNull:
				v.Set(reflect.Zero(mapType))
			case markerMap:
				if !s.enter() {
					return
				}
				n := s.buf.ReadZigZag32()
				if s.err() != nil {
					return
				}
				if n < 0 {
					s.fail(fmt.Errorf("%w: negative map length %d", ErrCorrupt, n))
					return
				}
				out := reflect.MakeMapWithSize(mapType, int(n))
				for i := 0; i < int(n); i++ {
					k := reflect.New(keyType).Elem()
					readKey(s, k)
					if s.err() != nil {
						return
					}
					val := reflect.New(valueType).Elem()
					readValue(s, val)
					if s.err() != nil {
						return
					}
					out.SetMapIndex(k, val)
				}
				v.Set(out)
				s.leave()
			default:
				s.fail(fmt.Errorf("%w: expected map, found %s", ErrCorrupt, markerName(m)))
			}
		}, func(v reflect.Value) int {
			if v.IsNil() {
				return 1
			}
			n := 1 + ZigZagSize32(int32(v.Len()))
			iter := v.MapRange()
			for iter.Next() {
				n += sizeKey(iter.Key()) + sizeValue(iter.Value())
			}
			return n
		}, nil
}

// sortMapKeys orders map keys so encoded bytes are deterministic for equal
// maps regardless of Go's map iteration order.
func sortMapKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool { return !keys[i].Bool() && keys[j].Bool() })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint8, reflect.Uint16:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	case reflect.Array:
		// UUID keys.
		sort.Slice(keys, func(i, j int) bool {
			a := keys[i].Interface().(uuid.UUID)
			b := keys[j].Interface().(uuid.UUID)
			return bytes.Compare(a[:], b[:]) < 0
		})
	}
}
