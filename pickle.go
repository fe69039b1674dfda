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

// Package pickle is a schema-less binary codec for Go structs, closed
// interface hierarchies and registered enums. The shape of a root type's
// type graph is analyzed once by reflection, compiled into per-field codec
// chains keyed by dense ordinals, and reused for every encode and decode.
// The wire format is self-describing: zig-zag varints, big-endian scalars,
// interned type names and one marker byte per value.
package pickle

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds encode and decode recursion. Deeper value graphs
// fail with ErrDepthExceeded instead of overflowing the stack.
const DefaultMaxDepth = 100

// Option configures a Pickler at construction.
type Option func(*config)

// WithCompatibility overrides the mode resolved from PICKLE_COMPATIBILITY.
func WithCompatibility(c Compatibility) Option {
	return func(cfg *config) {
		cfg.mode = c
		cfg.modeSet = true
	}
}

// WithMaxDepth overrides the recursion limit.
func WithMaxDepth(depth int) Option {
	return func(cfg *config) {
		if depth > 0 {
			cfg.maxDepth = depth
		}
	}
}

// WithLogger attaches a logger; registry construction logs at Debug.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *config) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithFallback adds a reduced-arity constructor to this pickler only. See
// RegisterFallback for the required function shape.
func WithFallback(fn any) Option {
	return func(cfg *config) {
		cfg.fallbacks = append(cfg.fallbacks, reflect.ValueOf(fn))
	}
}

// Pickler encodes and decodes values of the root type T. Construction does
// all reflection and validation; a built Pickler is immutable and safe for
// concurrent use as long as buffers are not shared.
type Pickler[T any] struct {
	rootType reflect.Type
	reg      *registry
	write    writerFn
	read     readerFn
	size     sizerFn
	elemMark int8
}

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func asInt64[E any](v E) int64 { return reflect.ValueOf(v).Int() }

// New builds a caller-owned Pickler for T. T must be a struct type, an
// interface registered with RegisterVariants, or an enum registered with
// RegisterEnum.
func New[T any](opts ...Option) (*Pickler[T], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	rootType := typeOf[T]()
	for _, fv := range cfg.fallbacks {
		if fv.Kind() != reflect.Func || fv.Type().IsVariadic() || fv.Type().NumOut() != 1 {
			return nil, fmt.Errorf("%w: fallback must be a non-variadic function with a single result", ErrUnsupportedType)
		}
	}
	reg, err := newRegistry(rootType, cfg)
	if err != nil {
		return nil, err
	}
	expr, err := analyzeType(rootType, nil)
	if err != nil {
		return nil, err
	}
	if expr.Kind != exprValue {
		return nil, fmt.Errorf("%w: root type %s must be a struct, registered interface or registered enum", ErrUnsupportedType, rootType)
	}
	elemMark := markerStruct
	switch expr.Val {
	case valStruct, valVariant:
	case valEnum:
		elemMark = markerEnum
	default:
		return nil, fmt.Errorf("%w: root type %s must be a struct, registered interface or registered enum", ErrUnsupportedType, rootType)
	}
	write, read, size, err := reg.buildChain(expr, -1)
	if err != nil {
		return nil, err
	}
	return &Pickler[T]{
		rootType: rootType,
		reg:      reg,
		write:    write,
		read:     read,
		size:     size,
		elemMark: elemMark,
	}, nil
}

var picklerCache sync.Map // reflect.Type -> built pickler

// For returns the process-wide Pickler for T, building it with default
// options on first use.
func For[T any]() (*Pickler[T], error) {
	key := typeOf[T]()
	if cached, ok := picklerCache.Load(key); ok {
		return cached.(*Pickler[T]), nil
	}
	p, err := New[T]()
	if err != nil {
		return nil, err
	}
	actual, _ := picklerCache.LoadOrStore(key, p)
	return actual.(*Pickler[T]), nil
}

// Compatibility returns the mode the pickler was built with.
func (p *Pickler[T]) Compatibility() Compatibility { return p.reg.mode }

func (p *Pickler[T]) newEncodeState(buf *WriteBuffer) *encodeState {
	return &encodeState{
		buf:      buf,
		reg:      p.reg,
		intern:   make(map[string]int),
		maxDepth: p.reg.maxDepth,
	}
}

func (p *Pickler[T]) newDecodeState(buf *ReadBuffer) *decodeState {
	return &decodeState{buf: buf, reg: p.reg, maxDepth: p.reg.maxDepth}
}

// Encode writes v to buf and returns the number of bytes written. On error
// the buffer may hold a partial value and should be discarded.
func (p *Pickler[T]) Encode(buf *WriteBuffer, v T) (int, error) {
	s := p.newEncodeState(buf)
	start := buf.Pos()
	p.write(s, reflect.ValueOf(&v).Elem())
	if s.err != nil {
		return 0, s.err
	}
	return buf.Pos() - start, nil
}

// Decode reads one value from buf. Errors are fatal: no partially decoded
// value is ever returned.
func (p *Pickler[T]) Decode(buf *ReadBuffer) (T, error) {
	var out T
	s := p.newDecodeState(buf)
	p.read(s, reflect.ValueOf(&out).Elem())
	if err := s.err(); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// MaxSize returns an upper bound on the encoded size of v. The bound is
// exact for varints and pessimistic for interned names and adaptive
// arrays; it never underestimates. Values whose pointer graph is cyclic
// must not be passed; Encode rejects them via the depth limit.
func (p *Pickler[T]) MaxSize(v T) int {
	return p.size(reflect.ValueOf(&v).Elem())
}

// Marshal encodes v into a fresh byte slice.
func (p *Pickler[T]) Marshal(v T) ([]byte, error) {
	buf := NewWriteBuffer(p.MaxSize(v))
	if _, err := p.Encode(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a value from data.
func (p *Pickler[T]) Unmarshal(data []byte) (T, error) {
	return p.Decode(NewReadBuffer(data))
}

// EncodeMany writes an array envelope holding all values in one session,
// so the type name is interned once across elements.
func (p *Pickler[T]) EncodeMany(buf *WriteBuffer, vs []T) (int, error) {
	s := p.newEncodeState(buf)
	start := buf.Pos()
	buf.WriteInt8(markerArray)
	buf.WriteInt8(p.elemMark)
	buf.WriteZigZag32(int32(len(vs)))
	for i := range vs {
		p.write(s, reflect.ValueOf(&vs[i]).Elem())
		if s.err != nil {
			return 0, fmt.Errorf("element %d: %w", i, s.err)
		}
	}
	return buf.Pos() - start, nil
}

// DecodeMany reads an array envelope written by EncodeMany. Errors name
// the failing element index.
func (p *Pickler[T]) DecodeMany(buf *ReadBuffer) ([]T, error) {
	s := p.newDecodeState(buf)
	if m := buf.ReadInt8(); m != markerArray {
		return nil, fmt.Errorf("%w: expected array, found %s", ErrCorrupt, markerName(m))
	}
	if em := buf.ReadInt8(); em != p.elemMark {
		return nil, fmt.Errorf("%w: expected %s elements, found %s", ErrCorrupt, markerName(p.elemMark), markerName(em))
	}
	n := buf.ReadZigZag32()
	if err := buf.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative element count %d", ErrCorrupt, n)
	}
	out := make([]T, n)
	for i := 0; i < int(n); i++ {
		p.read(s, reflect.ValueOf(&out[i]).Elem())
		if err := s.err(); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// MarshalMany encodes a batch into a fresh byte slice.
func (p *Pickler[T]) MarshalMany(vs []T) ([]byte, error) {
	size := 2 + ZigZagSize32(int32(len(vs)))
	for i := range vs {
		size += p.MaxSize(vs[i])
	}
	buf := NewWriteBuffer(size)
	if _, err := p.EncodeMany(buf, vs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalMany decodes a batch from data.
func (p *Pickler[T]) UnmarshalMany(data []byte) ([]T, error) {
	return p.DecodeMany(NewReadBuffer(data))
}
