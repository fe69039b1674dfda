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

// skipValue consumes one encoded value of any shape without materializing
// it. Extra trailing fields under FORWARDS or ALL compatibility must still
// be parsed so the cursor lands on the next value; the marker scheme makes
// every value skippable without type knowledge.
func skipValue(s *decodeState) {
	buf := s.buf
	m := buf.ReadInt8()
	if s.err() != nil {
		return
	}
	switch m {
	case markerNull, markerOptionalEmpty:
	case markerBool, markerInt8:
		buf.ReadInt8()
	case markerInt16, markerChar:
		buf.ReadBytes(2)
	case markerInt32:
		buf.ReadZigZag32()
	case markerInt64:
		buf.ReadZigZag64()
	case markerFloat32:
		buf.ReadBytes(4)
	case markerFloat64:
		buf.ReadBytes(8)
	case markerString:
		readStringPayload(buf)
	case markerUUID:
		buf.ReadBytes(16)
	case markerEnum:
		buf.ReadZigZag32()
		buf.ReadUint64()
		buf.ReadZigZag32()
	case markerOptionalPresent:
		if !s.enter() {
			return
		}
		skipValue(s)
		s.leave()
	case markerStruct:
		buf.ReadZigZag32()
		readInternedName(s)
		skipCounted(s, 1)
	case markerSameType:
		skipCounted(s, 1)
	case markerList:
		skipCounted(s, 1)
	case markerMap:
		skipCounted(s, 2)
	case markerArray:
		skipArray(s)
	default:
		s.fail(fmt.Errorf("%w: cannot skip %s", ErrCorrupt, markerName(m)))
	}
}

// skipCounted reads a varint count and skips count*per values.
func skipCounted(s *decodeState, per int) {
	if !s.enter() {
		return
	}
	n := s.buf.ReadZigZag32()
	if s.err() != nil {
		return
	}
	if n < 0 {
		s.fail(fmt.Errorf("%w: negative count %d", ErrCorrupt, n))
		return
	}
	for i := 0; i < int(n)*per; i++ {
		skipValue(s)
		if s.err() != nil {
			return
		}
	}
	s.leave()
}

func skipArray(s *decodeState) {
	buf := s.buf
	elem := buf.ReadInt8()
	n := buf.ReadZigZag32()
	if s.err() != nil {
		return
	}
	if n < 0 {
		s.fail(fmt.Errorf("%w: negative array length %d", ErrCorrupt, n))
		return
	}
	count := int(n)
	switch elem {
	case markerInt8:
		buf.ReadBytes(count)
	case markerBool:
		buf.ReadBytes((count + 7) / 8)
	case markerInt16, markerChar:
		buf.ReadBytes(2 * count)
	case markerInt32:
		switch form := buf.ReadInt8(); form {
		case arrayFormFixed:
			buf.ReadBytes(4 * count)
		case arrayFormVarint:
			for i := 0; i < count; i++ {
				buf.ReadZigZag32()
			}
		default:
			s.fail(fmt.Errorf("%w: unknown int32 array form %d", ErrCorrupt, form))
		}
	case markerInt64:
		switch form := buf.ReadInt8(); form {
		case arrayFormFixed:
			buf.ReadBytes(8 * count)
		case arrayFormVarint:
			for i := 0; i < count; i++ {
				buf.ReadZigZag64()
			}
		default:
			s.fail(fmt.Errorf("%w: unknown int64 array form %d", ErrCorrupt, form))
		}
	case markerFloat32:
		buf.ReadBytes(4 * count)
	case markerFloat64:
		buf.ReadBytes(8 * count)
	case markerString:
		for i := 0; i < count; i++ {
			readStringPayload(buf)
			if s.err() != nil {
				return
			}
		}
	case markerUUID:
		buf.ReadBytes(16 * count)
	default:
		s.fail(fmt.Errorf("%w: cannot skip array of %s", ErrCorrupt, markerName(elem)))
	}
}
