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

// Enum wire form: marker, 1-indexed type ordinal, 8-byte signature,
// constant ordinal. The signature rides inline on every value because enum
// records carry no interned name to attach it to.

func (r *registry) writeEnumValue(s *encodeState, ord int, value int64) {
	e := r.entries[ord]
	if value < 0 || value >= int64(len(e.enumNames)) {
		s.fail(fmt.Errorf("%w: enum %s has no constant %d (%d constants declared)",
			ErrUnknownType, e.name, value, len(e.enumNames)))
		return
	}
	buf := s.buf
	buf.WriteInt8(markerEnum)
	buf.WriteZigZag32(int32(ord + 1))
	buf.WriteUint64(e.sig)
	buf.WriteZigZag32(int32(value))
}

func (r *registry) readEnumValue(s *decodeState, ord int) int64 {
	if m := s.buf.ReadInt8(); m != markerEnum {
		s.fail(fmt.Errorf("%w: expected enum, found %s", ErrCorrupt, markerName(m)))
		return 0
	}
	return r.readEnumBody(s, ord)
}

// readEnumBody finishes an enum record after the marker; the wire ordinal
// is checked against the expected one under strict compatibility only.
func (r *registry) readEnumBody(s *decodeState, ord int) int64 {
	wireOrd, ok := r.readOrdinal(s)
	if !ok {
		return 0
	}
	e := r.entries[ord]
	if r.mode == CompatibilityNone && wireOrd != ord {
		s.fail(fmt.Errorf("%w: compatibility mode %s requires ordinal %d for enum %s, found %d",
			ErrSchemaEvolution, r.mode, ord+1, e.name, wireOrd+1))
		return 0
	}
	sig := s.buf.ReadUint64()
	if s.err() != nil {
		return 0
	}
	if r.mode == CompatibilityNone && sig != e.sig {
		s.fail(fmt.Errorf("%w: signature mismatch for enum %s: encoded %016x, declared %016x",
			ErrSchemaEvolution, e.name, sig, e.sig))
		return 0
	}
	constant := s.buf.ReadZigZag32()
	if s.err() != nil {
		return 0
	}
	if constant < 0 || int(constant) >= len(e.enumNames) {
		s.fail(fmt.Errorf("%w: enum %s has no constant %d (%d constants declared)",
			ErrCorrupt, e.name, constant, len(e.enumNames)))
		return 0
	}
	return int64(constant)
}

func (r *registry) sizeEnumValue(ord int, value int64) int {
	return 1 + ZigZagSize32(int32(ord+1)) + 8 + ZigZagSize32(int32(value))
}

// EnumName returns the registered constant name for an enum value, for
// diagnostics and log output.
func EnumName[E any](value E) (string, bool) {
	names, ok := lookupEnum(typeOf[E]())
	if !ok {
		return "", false
	}
	idx := int(asInt64(value))
	if idx < 0 || idx >= len(names) {
		return "", false
	}
	return names[idx], true
}
