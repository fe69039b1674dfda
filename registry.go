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
	"strings"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

// signatureSeed feeds the murmur3 hash of type shapes.
const signatureSeed = 47

// ==========================================================================
// Session state
// ==========================================================================

// encodeState carries per-encode session state: the buffer, the interning
// map and the recursion depth. One per Encode call, never shared.
type encodeState struct {
	buf      *WriteBuffer
	reg      *registry
	intern   map[string]int
	depth    int
	maxDepth int
	err      error
}

func (s *encodeState) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *encodeState) enter() bool {
	s.depth++
	if s.depth > s.maxDepth {
		s.fail(fmt.Errorf("%w: value graph deeper than %d", ErrDepthExceeded, s.maxDepth))
		return false
	}
	return true
}

func (s *encodeState) leave() { s.depth-- }

// decodeState carries per-decode session state. Read failures stick to the
// buffer; semantic failures are reported the same way so chains can run
// unconditionally and check once.
type decodeState struct {
	buf      *ReadBuffer
	reg      *registry
	depth    int
	maxDepth int
}

func (s *decodeState) fail(err error) { s.buf.fail(err) }
func (s *decodeState) err() error     { return s.buf.err }

func (s *decodeState) enter() bool {
	s.depth++
	if s.depth > s.maxDepth {
		s.fail(fmt.Errorf("%w: encoded value deeper than %d", ErrDepthExceeded, s.maxDepth))
		return false
	}
	return true
}

func (s *decodeState) leave() { s.depth-- }

// ==========================================================================
// Registry
// ==========================================================================

type writerFn func(s *encodeState, v reflect.Value)
type readerFn func(s *decodeState, v reflect.Value)
type sizerFn func(v reflect.Value) int

type entryKind int

const (
	entryStruct entryKind = iota
	entryEnum
)

// fieldCodec is the compiled writer/reader/sizer triple for one struct
// field, composed right-to-left from its TypeExpr.
type fieldCodec struct {
	name  string
	index int
	write writerFn
	read  readerFn
	size  sizerFn
}

// typeEntry is the per-ordinal compiled form of a concrete type.
type typeEntry struct {
	typ       reflect.Type
	name      string
	kind      entryKind
	sig       uint64
	fields    []fieldCodec
	fallbacks map[int]reflect.Value
	enumNames []string
}

// registry maps the type graph of one root type onto a dense ordinal table.
// Built once, then immutable; every encode and decode runs on precompiled
// chains with no name lookups.
type registry struct {
	mode     Compatibility
	maxDepth int
	log      *zap.Logger
	entries  []*typeEntry
	ordinals map[reflect.Type]int
}

type config struct {
	mode      Compatibility
	modeSet   bool
	maxDepth  int
	log       *zap.Logger
	fallbacks []reflect.Value
}

func defaultConfig() config {
	return config{maxDepth: DefaultMaxDepth, log: zap.NewNop()}
}

func newRegistry(root reflect.Type, cfg config) (*registry, error) {
	mode := cfg.mode
	if !cfg.modeSet {
		mode = compatibilityFromEnv()
	}
	r := &registry{
		mode:     mode,
		maxDepth: cfg.maxDepth,
		log:      cfg.log,
		ordinals: make(map[reflect.Type]int),
	}

	concrete, err := discoverReachable(root)
	if err != nil {
		return nil, err
	}
	if len(concrete) == 0 {
		return nil, fmt.Errorf("%w: %s reaches no concrete types", ErrUnsupportedType, root)
	}

	// First pass assigns ordinals and signatures so chains built in the
	// second pass can reference any entry, including forward ones.
	for ord, t := range concrete {
		e := &typeEntry{typ: t, name: fullName(t)}
		if names, ok := lookupEnum(t); ok {
			e.kind = entryEnum
			e.enumNames = names
			e.sig = enumSignature(e)
		} else {
			e.kind = entryStruct
			e.fallbacks = lookupFallbacks(t)
		}
		r.entries = append(r.entries, e)
		r.ordinals[t] = ord
	}
	for _, fv := range cfg.fallbacks {
		out := fv.Type().Out(0)
		ord, ok := r.ordinals[out]
		if !ok {
			return nil, fmt.Errorf("%w: fallback result %s is not reachable from %s", ErrUnknownType, out, root)
		}
		e := r.entries[ord]
		if e.fallbacks == nil {
			e.fallbacks = make(map[int]reflect.Value)
		}
		e.fallbacks[fv.Type().NumIn()] = fv
	}

	for ord, e := range r.entries {
		if e.kind != entryStruct {
			continue
		}
		if err := r.compileStruct(ord, e); err != nil {
			return nil, err
		}
	}

	r.log.Debug("pickle registry built",
		zap.String("root", fullName(root)),
		zap.Int("types", len(r.entries)),
		zap.Stringer("compatibility", mode))
	return r, nil
}

func (r *registry) compileStruct(ord int, e *typeEntry) error {
	t := e.typ
	var exprs []*TypeExpr
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		expr, err := analyzeType(f.Type, t)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.name, f.Name, err)
		}
		write, read, size, err := r.buildChain(expr, ord)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.name, f.Name, err)
		}
		e.fields = append(e.fields, fieldCodec{
			name:  f.Name,
			index: i,
			write: write,
			read:  read,
			size:  size,
		})
		exprs = append(exprs, expr)
	}
	e.sig = structSignature(e, exprs)
	for arity, fb := range e.fallbacks {
		if arity >= len(e.fields) {
			return fmt.Errorf("%w: fallback for %s has arity %d but the type declares %d fields",
				ErrUnsupportedType, e.name, arity, len(e.fields))
		}
		for i := 0; i < arity; i++ {
			want := t.Field(e.fields[i].index).Type
			if fb.Type().In(i) != want {
				return fmt.Errorf("%w: fallback for %s expects %s for parameter %d, field %s is %s",
					ErrUnsupportedType, e.name, fb.Type().In(i), i, e.fields[i].name, want)
			}
		}
	}
	return nil
}

func structSignature(e *typeEntry, exprs []*TypeExpr) uint64 {
	var sb strings.Builder
	sb.WriteString(e.name)
	sb.WriteByte('(')
	for i, fc := range e.fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fc.name)
		sb.WriteByte(':')
		sb.WriteString(exprs[i].signature())
	}
	sb.WriteByte(')')
	return murmur3.Sum64WithSeed([]byte(sb.String()), signatureSeed)
}

func enumSignature(e *typeEntry) uint64 {
	var sb strings.Builder
	sb.WriteString("enum:")
	sb.WriteString(e.name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(e.enumNames, ","))
	sb.WriteByte(')')
	return murmur3.Sum64WithSeed([]byte(sb.String()), signatureSeed)
}

// ==========================================================================
// Struct records
// ==========================================================================

// writeStructValue writes the full record for a struct value of a known
// ordinal: marker, 1-indexed ordinal, interned name, field count, fields.
func (r *registry) writeStructValue(s *encodeState, ord int, v reflect.Value) {
	if !s.enter() {
		return
	}
	e := r.entries[ord]
	buf := s.buf
	buf.WriteInt8(markerStruct)
	buf.WriteZigZag32(int32(ord + 1))
	writeInternedName(s, e)
	buf.WriteZigZag32(int32(len(e.fields)))
	for i := range e.fields {
		e.fields[i].write(s, v.Field(e.fields[i].index))
		if s.err != nil {
			return
		}
	}
	s.leave()
}

func (r *registry) sizeStructValue(ord int, v reflect.Value) int {
	e := r.entries[ord]
	n := 1 + ZigZagSize32(int32(ord+1)) + internedNameMaxSize(e) + ZigZagSize32(int32(len(e.fields)))
	for i := range e.fields {
		n += e.fields[i].size(v.Field(e.fields[i].index))
	}
	return n
}

// readOrdinal reads and bounds-checks a 1-indexed wire ordinal.
func (r *registry) readOrdinal(s *decodeState) (int, bool) {
	raw := s.buf.ReadZigZag32()
	if s.err() != nil {
		return 0, false
	}
	ord := int(raw) - 1
	if ord < 0 || ord >= len(r.entries) {
		s.fail(fmt.Errorf("%w: ordinal %d outside table of %d types", ErrCorrupt, raw, len(r.entries)))
		return 0, false
	}
	return ord, true
}

// readStructRecord reads a struct record into a settable value of the
// entry's type. The struct marker has already been consumed; ord is the
// ordinal expected from the chain.
func (r *registry) readStructRecord(s *decodeState, ord int, into reflect.Value) {
	wireOrd, ok := r.readOrdinal(s)
	if !ok {
		return
	}
	e := r.entries[ord]
	if r.mode == CompatibilityNone && wireOrd != ord {
		s.fail(fmt.Errorf("%w: compatibility mode %s requires ordinal %d for type %s, found %d",
			ErrSchemaEvolution, r.mode, ord+1, e.name, wireOrd+1))
		return
	}
	count, ok := r.readRecordHeader(s, e)
	if !ok {
		return
	}
	r.readFields(s, e, count, into)
}

// readRecordHeader consumes the interned name and field count of a struct
// record and enforces the NONE checks. A signature mismatch is held back
// until the count is read: when the counts also disagree, the count error
// names both counts and the mode, which is the actionable diagnosis.
func (r *registry) readRecordHeader(s *decodeState, e *typeEntry) (int, bool) {
	name, sig, first := readInternedName(s)
	if s.err() != nil {
		return 0, false
	}
	var sigErr error
	if r.mode == CompatibilityNone && first {
		if name != e.name {
			s.fail(fmt.Errorf("%w: compatibility mode %s cannot decode type %s as %s",
				ErrSchemaEvolution, r.mode, name, e.name))
			return 0, false
		}
		if sig != e.sig {
			sigErr = fmt.Errorf("%w: signature mismatch for type %s: encoded %016x, declared %016x",
				ErrSchemaEvolution, e.name, sig, e.sig)
		}
	}
	count := int(s.buf.ReadZigZag32())
	if s.err() != nil {
		return 0, false
	}
	if sigErr != nil {
		if count >= 0 {
			if err := r.mode.validateFieldCount(e.name, len(e.fields), count); err != nil {
				s.fail(err)
				return 0, false
			}
		}
		s.fail(sigErr)
		return 0, false
	}
	return count, true
}

// readFields validates the encoded field count against the declared one and
// builds the value: canonical path when counts match, fallback constructor
// when fewer, parse-and-discard when more.
func (r *registry) readFields(s *decodeState, e *typeEntry, count int, into reflect.Value) {
	if !s.enter() {
		return
	}
	if count < 0 {
		s.fail(fmt.Errorf("%w: negative field count %d", ErrCorrupt, count))
		return
	}
	if err := r.mode.validateFieldCount(e.name, len(e.fields), count); err != nil {
		s.fail(err)
		return
	}
	switch {
	case count == len(e.fields):
		for i := range e.fields {
			e.fields[i].read(s, into.Field(e.fields[i].index))
			if s.err() != nil {
				return
			}
		}
	case count < len(e.fields):
		fb, ok := e.fallbacks[count]
		if !ok {
			s.fail(fmt.Errorf("%w: type %s has no fallback constructor with arity %d",
				ErrSchemaEvolution, e.name, count))
			return
		}
		tmp := reflect.New(e.typ).Elem()
		args := make([]reflect.Value, count)
		for i := 0; i < count; i++ {
			e.fields[i].read(s, tmp.Field(e.fields[i].index))
			if s.err() != nil {
				return
			}
			args[i] = tmp.Field(e.fields[i].index)
		}
		into.Set(fb.Call(args)[0])
	default:
		for i := range e.fields {
			e.fields[i].read(s, into.Field(e.fields[i].index))
			if s.err() != nil {
				return
			}
		}
		for i := len(e.fields); i < count; i++ {
			skipValue(s)
			if s.err() != nil {
				return
			}
		}
	}
	s.leave()
}

// ==========================================================================
// Variant dispatch
// ==========================================================================

// variantCodec dispatches interface values over the closed set of
// registered concrete types. The only runtime lookup left after
// construction is the concrete-type to ordinal map hit on write.
type variantCodec struct {
	reg     *registry
	iface   reflect.Type
	members map[int]variantInfo // ordinal -> member
}

func (r *registry) newVariantCodec(iface reflect.Type) (*variantCodec, error) {
	infos, ok := lookupVariants(iface)
	if !ok {
		return nil, fmt.Errorf("%w: interface %s has no registered variants", ErrUnsupportedType, iface)
	}
	vc := &variantCodec{reg: r, iface: iface, members: make(map[int]variantInfo, len(infos))}
	for _, info := range infos {
		ord, ok := r.ordinals[info.structType]
		if !ok {
			return nil, fmt.Errorf("%w: variant %s of %s was not discovered", ErrUnknownType, info.structType, iface)
		}
		vc.members[ord] = info
	}
	return vc, nil
}

func (vc *variantCodec) write(s *encodeState, v reflect.Value) {
	if v.IsNil() {
		s.buf.WriteInt8(markerNull)
		return
	}
	concrete := v.Elem()
	if concrete.Kind() == reflect.Ptr {
		if concrete.IsNil() {
			s.buf.WriteInt8(markerNull)
			return
		}
		concrete = concrete.Elem()
	}
	ord, ok := vc.reg.ordinals[concrete.Type()]
	if !ok {
		s.fail(fmt.Errorf("%w: %s is not a registered variant of %s", ErrUnknownType, concrete.Type(), vc.iface))
		return
	}
	if _, ok := vc.members[ord]; !ok {
		s.fail(fmt.Errorf("%w: %s is not a registered variant of %s", ErrUnknownType, concrete.Type(), vc.iface))
		return
	}
	vc.reg.writeStructValue(s, ord, concrete)
}

func (vc *variantCodec) read(s *decodeState, into reflect.Value) {
	switch m := s.buf.ReadInt8(); m {
	case markerNull:
		into.Set(reflect.Zero(vc.iface))
	case markerStruct:
		ord, ok := vc.reg.readOrdinal(s)
		if !ok {
			return
		}
		member, ok := vc.members[ord]
		if !ok {
			s.fail(fmt.Errorf("%w: ordinal %d is not a variant of %s", ErrCorrupt, ord+1, vc.iface))
			return
		}
		// Re-run the record body with the dispatched ordinal.
		vc.reg.readStructBody(s, ord, member, into)
	default:
		s.fail(fmt.Errorf("%w: expected struct for %s, found %s", ErrCorrupt, vc.iface, markerName(m)))
	}
}

// readStructBody finishes a variant record after the ordinal has been
// dispatched: interned name, field count, fields, then interface wrapping.
func (r *registry) readStructBody(s *decodeState, ord int, member variantInfo, into reflect.Value) {
	e := r.entries[ord]
	count, ok := r.readRecordHeader(s, e)
	if !ok {
		return
	}
	value := reflect.New(e.typ)
	r.readFields(s, e, count, value.Elem())
	if s.err() != nil {
		return
	}
	if member.ptr {
		into.Set(value)
	} else {
		into.Set(value.Elem())
	}
}

func (vc *variantCodec) size(v reflect.Value) int {
	if v.IsNil() {
		return 1
	}
	concrete := v.Elem()
	if concrete.Kind() == reflect.Ptr {
		if concrete.IsNil() {
			return 1
		}
		concrete = concrete.Elem()
	}
	ord, ok := vc.reg.ordinals[concrete.Type()]
	if !ok {
		// Encode will reject the value; bound it by the null marker.
		return 1
	}
	return vc.reg.sizeStructValue(ord, concrete)
}
