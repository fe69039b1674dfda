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

// Package threadsafe wraps a pickle.Pickler with a sync.Pool of write
// buffers so concurrent goroutines can marshal without sharing session
// state.
package threadsafe

import (
	"sync"

	"github.com/noframework/pickle"
)

// Pickler is a concurrency-safe wrapper around pickle.Pickler[T]. The
// underlying pickler is immutable after construction; only the write
// buffers need pooling.
type Pickler[T any] struct {
	inner *pickle.Pickler[T]
	pool  sync.Pool
}

// New builds the wrapped pickler with the given options.
func New[T any](opts ...pickle.Option) (*Pickler[T], error) {
	inner, err := pickle.New[T](opts...)
	if err != nil {
		return nil, err
	}
	p := &Pickler[T]{inner: inner}
	p.pool = sync.Pool{
		New: func() any {
			return pickle.NewWriteBuffer(256)
		},
	}
	return p, nil
}

// Unwrap returns the underlying pickler for callers that manage their own
// buffers.
func (p *Pickler[T]) Unwrap() *pickle.Pickler[T] { return p.inner }

func (p *Pickler[T]) acquire() *pickle.WriteBuffer {
	buf := p.pool.Get().(*pickle.WriteBuffer)
	buf.Reset()
	return buf
}

// Marshal encodes v into a fresh byte slice using a pooled buffer.
func (p *Pickler[T]) Marshal(v T) ([]byte, error) {
	buf := p.acquire()
	defer p.pool.Put(buf)
	if _, err := p.inner.Encode(buf, v); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes a value from data. Decoding needs no pooled state: the
// read cursor lives on the caller's ReadBuffer.
func (p *Pickler[T]) Unmarshal(data []byte) (T, error) {
	return p.inner.Unmarshal(data)
}

// MarshalMany encodes a batch using a pooled buffer, interning the type
// name once across elements.
func (p *Pickler[T]) MarshalMany(vs []T) ([]byte, error) {
	buf := p.acquire()
	defer p.pool.Put(buf)
	if _, err := p.inner.EncodeMany(buf, vs); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// UnmarshalMany decodes a batch from data.
func (p *Pickler[T]) UnmarshalMany(data []byte) ([]T, error) {
	return p.inner.UnmarshalMany(data)
}
