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

// Package optional provides a value-typed Optional[T] recognized by the
// codec: empty optionals encode as a single marker byte instead of a
// pointer null. The Value and Has fields are exported so the codec can
// reach them without allocation; treat them as read-only and construct
// through Some and None.
package optional

// Optional holds a value of type T or nothing, without pointer
// indirection.
type Optional[T any] struct {
	Value T
	Has   bool
}

// Some returns an Optional containing v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Has: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr converts a possibly nil pointer to an Optional.
func FromPtr[T any](v *T) Optional[T] {
	if v == nil {
		return None[T]()
	}
	return Some(*v)
}

// Ptr returns a pointer to a copy of the contained value, or nil.
func (o Optional[T]) Ptr() *T {
	if !o.Has {
		return nil
	}
	v := o.Value
	return &v
}

// IsSome reports whether the optional contains a value.
func (o Optional[T]) IsSome() bool { return o.Has }

// IsNone reports whether the optional is empty.
func (o Optional[T]) IsNone() bool { return !o.Has }

// Unwrap returns the contained value or panics.
func (o Optional[T]) Unwrap() T {
	if !o.Has {
		panic("optional: unwrap on None")
	}
	return o.Value
}

// UnwrapOr returns the contained value or a default.
func (o Optional[T]) UnwrapOr(defaultValue T) T {
	if o.Has {
		return o.Value
	}
	return defaultValue
}

// UnwrapOrElse returns the contained value or computes a default.
func (o Optional[T]) UnwrapOrElse(defaultFn func() T) T {
	if o.Has {
		return o.Value
	}
	return defaultFn()
}

// Or returns o if it holds a value, otherwise other.
func (o Optional[T]) Or(other Optional[T]) Optional[T] {
	if o.Has {
		return o
	}
	return other
}

// Filter returns None if the predicate rejects the contained value.
func (o Optional[T]) Filter(predicate func(T) bool) Optional[T] {
	if o.Has && predicate(o.Value) {
		return o
	}
	return None[T]()
}

// Map transforms Optional[T] into Optional[U] by applying f to a present
// value.
func Map[T, U any](o Optional[T], f func(T) U) Optional[U] {
	if !o.Has {
		return None[U]()
	}
	return Some(f(o.Value))
}

// AndThen chains computations that may themselves come up empty.
func AndThen[T, U any](o Optional[T], f func(T) Optional[U]) Optional[U] {
	if !o.Has {
		return None[U]()
	}
	return f(o.Value)
}

// Flatten collapses a nested Optional.
func Flatten[T any](o Optional[Optional[T]]) Optional[T] {
	if !o.Has {
		return None[T]()
	}
	return o.Value
}
