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
	"sync"
)

// Go reflection cannot enumerate the implementers of an interface, the
// constants of a named type, or reduced-arity constructors. The tables below
// supply that metadata; they are consulted once, at registry construction.

// variantInfo records one concrete member of a closed interface hierarchy.
type variantInfo struct {
	structType reflect.Type
	ptr        bool
}

var regTables struct {
	mu        sync.RWMutex
	variants  map[reflect.Type][]variantInfo
	enums     map[reflect.Type][]string
	fallbacks map[reflect.Type]map[int]reflect.Value
}

// RegisterVariants declares the closed set of concrete types that may be
// stored in interface I. Each variant is given as a sample value, either S
// or *S depending on which form implements I. Must be called before any
// pickler for a root type reaching I is built.
func RegisterVariants[I any](variants ...any) error {
	ifaceType := reflect.TypeOf((*I)(nil)).Elem()
	if ifaceType.Kind() != reflect.Interface {
		return fmt.Errorf("%w: %s is not an interface", ErrUnsupportedType, ifaceType)
	}
	if len(variants) == 0 {
		return fmt.Errorf("%w: interface %s registered with no variants", ErrUnsupportedType, ifaceType)
	}
	infos := make([]variantInfo, 0, len(variants))
	for _, v := range variants {
		t := reflect.TypeOf(v)
		if t == nil {
			return fmt.Errorf("%w: nil variant for interface %s", ErrUnsupportedType, ifaceType)
		}
		if !t.Implements(ifaceType) {
			return fmt.Errorf("%w: %s does not implement %s", ErrUnsupportedType, t, ifaceType)
		}
		info := variantInfo{structType: t}
		if t.Kind() == reflect.Ptr {
			info.structType = t.Elem()
			info.ptr = true
		}
		if info.structType.Kind() != reflect.Struct {
			return fmt.Errorf("%w: variant %s of %s is not a struct", ErrUnsupportedType, t, ifaceType)
		}
		infos = append(infos, info)
	}
	regTables.mu.Lock()
	defer regTables.mu.Unlock()
	if regTables.variants == nil {
		regTables.variants = make(map[reflect.Type][]variantInfo)
	}
	regTables.variants[ifaceType] = infos
	return nil
}

// RegisterEnum declares E, a named integer type, as an enum with the given
// constant names. The integer value of a constant is its index in names.
func RegisterEnum[E any](names ...string) error {
	t := reflect.TypeOf((*E)(nil)).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return fmt.Errorf("%w: enum type %s must have a signed integer kind", ErrUnsupportedType, t)
	}
	if t.PkgPath() == "" {
		return fmt.Errorf("%w: enum type %s must be a named type", ErrUnsupportedType, t)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: enum type %s registered with no constants", ErrUnsupportedType, t)
	}
	regTables.mu.Lock()
	defer regTables.mu.Unlock()
	if regTables.enums == nil {
		regTables.enums = make(map[reflect.Type][]string)
	}
	regTables.enums[t] = append([]string(nil), names...)
	return nil
}

// RegisterFallback declares a reduced-arity constructor used under
// BACKWARDS or ALL compatibility when the encoded data carries fewer fields
// than the type declares. fn must be func(older fields...) T where the
// parameters match a prefix of T's fields in declaration order.
func RegisterFallback(fn any) error {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return fmt.Errorf("%w: fallback must be a function", ErrUnsupportedType)
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumOut() != 1 {
		return fmt.Errorf("%w: fallback must be non-variadic with a single result", ErrUnsupportedType)
	}
	out := ft.Out(0)
	if out.Kind() != reflect.Struct {
		return fmt.Errorf("%w: fallback result %s is not a struct", ErrUnsupportedType, out)
	}
	regTables.mu.Lock()
	defer regTables.mu.Unlock()
	if regTables.fallbacks == nil {
		regTables.fallbacks = make(map[reflect.Type]map[int]reflect.Value)
	}
	byArity := regTables.fallbacks[out]
	if byArity == nil {
		byArity = make(map[int]reflect.Value)
		regTables.fallbacks[out] = byArity
	}
	byArity[ft.NumIn()] = fv
	return nil
}

func lookupVariants(iface reflect.Type) ([]variantInfo, bool) {
	regTables.mu.RLock()
	defer regTables.mu.RUnlock()
	infos, ok := regTables.variants[iface]
	return infos, ok
}

func lookupEnum(t reflect.Type) ([]string, bool) {
	regTables.mu.RLock()
	defer regTables.mu.RUnlock()
	names, ok := regTables.enums[t]
	return names, ok
}

func lookupFallbacks(t reflect.Type) map[int]reflect.Value {
	regTables.mu.RLock()
	defer regTables.mu.RUnlock()
	byArity := regTables.fallbacks[t]
	if byArity == nil {
		return nil
	}
	out := make(map[int]reflect.Value, len(byArity))
	for arity, fn := range byArity {
		out[arity] = fn
	}
	return out
}
