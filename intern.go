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

// Type-name interning. The first occurrence of a type name in a stream is
// written in full together with its 8-byte signature; every later
// occurrence is a negative byte offset back to the first record. The read
// side needs no table: it seeks to the offset target, reads the record and
// restores the cursor.

// writeInternedName writes either the full name record or a back-reference.
// The session map keys on the position of the interned-name marker byte.
func writeInternedName(s *encodeState, e *typeEntry) {
	buf := s.buf
	if first, ok := s.intern[e.name]; ok {
		cur := buf.Pos()
		buf.WriteInt8(markerInternedOffset)
		buf.WriteZigZag32(int32(first - cur))
		return
	}
	s.intern[e.name] = buf.Pos()
	buf.WriteInt8(markerInternedName)
	buf.WriteZigZag32(int32(len(e.name)))
	buf.WriteBytes([]byte(e.name))
	buf.WriteUint64(e.sig)
}

// internedNameMaxSize bounds what writeInternedName can produce for e. The
// full record is always the larger form.
func internedNameMaxSize(e *typeEntry) int {
	return 1 + ZigZagSize32(int32(len(e.name))) + len(e.name) + 8
}

// readInternedName reads a name record or follows a back-reference. first
// reports whether this was the full record, meaning the signature had not
// been seen earlier in the stream.
func readInternedName(s *decodeState) (name string, sig uint64, first bool) {
	buf := s.buf
	markerPos := buf.Pos()
	switch m := buf.ReadInt8(); m {
	case markerInternedName:
		return readNameRecord(buf), buf.ReadUint64(), true
	case markerInternedOffset:
		offset := buf.ReadZigZag32()
		if buf.err != nil {
			return "", 0, false
		}
		if offset >= 0 {
			buf.fail(fmt.Errorf("%w: interned name offset %d is not negative", ErrCorrupt, offset))
			return "", 0, false
		}
		resume := buf.Pos()
		if buf.Seek(markerPos+int(offset)) != nil {
			return "", 0, false
		}
		if m := buf.ReadInt8(); m != markerInternedName {
			buf.fail(fmt.Errorf("%w: interned offset does not point at a name record (found %s)", ErrCorrupt, markerName(m)))
			return "", 0, false
		}
		name = readNameRecord(buf)
		sig = buf.ReadUint64()
		if buf.Seek(resume) != nil {
			return "", 0, false
		}
		return name, sig, false
	default:
		buf.fail(fmt.Errorf("%w: expected interned name, found %s", ErrCorrupt, markerName(m)))
		return "", 0, false
	}
}

func readNameRecord(buf *ReadBuffer) string {
	n := buf.ReadZigZag32()
	if buf.err != nil {
		return ""
	}
	if n < 0 {
		buf.fail(fmt.Errorf("%w: negative name length %d", ErrCorrupt, n))
		return ""
	}
	return string(buf.ReadBytes(int(n)))
}
