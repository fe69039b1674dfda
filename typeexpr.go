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
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ==========================================================================
// Type-shape analysis
// ==========================================================================

type exprKind int

const (
	exprValue exprKind = iota
	exprArray
	exprList
	exprOptional
	exprMap
)

type valueKind int

const (
	valBool valueKind = iota
	valInt8
	valInt16
	valChar
	valInt32
	valInt64
	valFloat32
	valFloat64
	valString
	valUUID
	valEnum
	valStruct
	valVariant
	valSame
)

// TypeExpr is a structural description of a field type, produced once by
// analyzeType and compiled into a codec chain. Analysis is pure and
// deterministic: the same reflect.Type always yields the same tree.
type TypeExpr struct {
	Kind     exprKind
	Val      valueKind // meaningful when Kind == exprValue
	Type     reflect.Type
	Elem     *TypeExpr // array, list, optional
	Key      *TypeExpr // map
	Value    *TypeExpr // map
	Nullable bool      // pointer-to-struct fields
	FixedLen int       // length of [N]T arrays, -1 otherwise
}

var uuidType = reflect.TypeOf(uuid.UUID{})

const optionalPkgPath = "github.com/noframework/pickle/optional"

// optionalInfo describes the Optional[T] layout for fast field access.
type optionalInfo struct {
	valueType  reflect.Type
	valueIndex int
	hasIndex   int
}

func getOptionalInfo(t reflect.Type) (optionalInfo, bool) {
	if t == nil || t.Kind() != reflect.Struct || t.PkgPath() != optionalPkgPath {
		return optionalInfo{}, false
	}
	name := t.Name()
	if name != "Optional" && !strings.HasPrefix(name, "Optional[") {
		return optionalInfo{}, false
	}
	valueField, ok := t.FieldByName("Value")
	if !ok {
		return optionalInfo{}, false
	}
	hasField, ok := t.FieldByName("Has")
	if !ok || hasField.Type.Kind() != reflect.Bool {
		return optionalInfo{}, false
	}
	return optionalInfo{
		valueType:  valueField.Type,
		valueIndex: valueField.Index[0],
		hasIndex:   hasField.Index[0],
	}, true
}

// fullName returns the fully-qualified name used for ordinal ordering,
// interning and signatures.
func fullName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// analyzeType builds the TypeExpr for t. owner is the struct type whose
// field is being analyzed; a pointer back to owner becomes a same-type
// reference instead of an ordinary struct node.
func analyzeType(t reflect.Type, owner reflect.Type) (*TypeExpr, error) {
	if t == uuidType {
		return &TypeExpr{Kind: exprValue, Val: valUUID, Type: t, FixedLen: -1}, nil
	}
	if info, ok := getOptionalInfo(t); ok {
		elem, err := analyzeType(info.valueType, owner)
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: exprOptional, Type: t, Elem: elem, FixedLen: -1}, nil
	}
	if _, ok := lookupEnum(t); ok {
		return &TypeExpr{Kind: exprValue, Val: valEnum, Type: t, FixedLen: -1}, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return leafExpr(valBool, t), nil
	case reflect.Int8, reflect.Uint8:
		return leafExpr(valInt8, t), nil
	case reflect.Int16:
		return leafExpr(valInt16, t), nil
	case reflect.Uint16:
		return leafExpr(valChar, t), nil
	case reflect.Int32:
		return leafExpr(valInt32, t), nil
	case reflect.Int, reflect.Int64:
		return leafExpr(valInt64, t), nil
	case reflect.Float32:
		return leafExpr(valFloat32, t), nil
	case reflect.Float64:
		return leafExpr(valFloat64, t), nil
	case reflect.String:
		return leafExpr(valString, t), nil
	case reflect.Struct:
		return leafExpr(valStruct, t), nil
	case reflect.Ptr:
		if t.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: pointer to %s (only pointers to structs are supported)", ErrUnsupportedType, t.Elem())
		}
		kind := valStruct
		if t.Elem() == owner {
			kind = valSame
		}
		return &TypeExpr{Kind: exprValue, Val: kind, Type: t, Nullable: true, FixedLen: -1}, nil
	case reflect.Interface:
		if _, ok := lookupVariants(t); !ok {
			return nil, fmt.Errorf("%w: interface %s has no registered variants (closed hierarchies must be declared with RegisterVariants)", ErrUnsupportedType, t)
		}
		return leafExpr(valVariant, t), nil
	case reflect.Slice:
		elem, err := analyzeType(t.Elem(), owner)
		if err != nil {
			return nil, err
		}
		if elem.isPrimitiveLeaf() {
			return &TypeExpr{Kind: exprArray, Type: t, Elem: elem, FixedLen: -1}, nil
		}
		return &TypeExpr{Kind: exprList, Type: t, Elem: elem, Nullable: true, FixedLen: -1}, nil
	case reflect.Array:
		elem, err := analyzeType(t.Elem(), owner)
		if err != nil {
			return nil, err
		}
		if !elem.isPrimitiveLeaf() {
			return nil, fmt.Errorf("%w: fixed array %s (only arrays of primitive elements are supported)", ErrUnsupportedType, t)
		}
		return &TypeExpr{Kind: exprArray, Type: t, Elem: elem, FixedLen: t.Len()}, nil
	case reflect.Map:
		key, err := analyzeType(t.Key(), owner)
		if err != nil {
			return nil, err
		}
		if !key.isMapKey() {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupportedType, t.Key())
		}
		value, err := analyzeType(t.Elem(), owner)
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: exprMap, Type: t, Key: key, Value: value, Nullable: true, FixedLen: -1}, nil
	default:
		return nil, fmt.Errorf("%w: %s (kind %s)", ErrUnsupportedType, t, t.Kind())
	}
}

func leafExpr(v valueKind, t reflect.Type) *TypeExpr {
	return &TypeExpr{Kind: exprValue, Val: v, Type: t, FixedLen: -1}
}

// isPrimitiveLeaf reports whether the node is a fixed-shape scalar eligible
// for the packed array codec.
func (e *TypeExpr) isPrimitiveLeaf() bool {
	if e.Kind != exprValue || e.Nullable {
		return false
	}
	switch e.Val {
	case valBool, valInt8, valInt16, valChar, valInt32, valInt64,
		valFloat32, valFloat64, valString, valUUID:
		return true
	}
	return false
}

// isMapKey reports whether the node may serve as a map key. Keys must be
// comparable scalars so encode order can be made deterministic.
func (e *TypeExpr) isMapKey() bool {
	if e.Kind != exprValue || e.Nullable {
		return false
	}
	switch e.Val {
	case valBool, valInt8, valInt16, valChar, valInt32, valInt64,
		valString, valUUID, valEnum:
		return true
	}
	return false
}

// signature renders a stable structural description used for type hashing.
func (e *TypeExpr) signature() string {
	var sb strings.Builder
	e.writeSignature(&sb)
	return sb.String()
}

func (e *TypeExpr) writeSignature(sb *strings.Builder) {
	if e.Nullable {
		sb.WriteByte('?')
	}
	switch e.Kind {
	case exprArray:
		sb.WriteString("array")
		if e.FixedLen >= 0 {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(e.FixedLen))
			sb.WriteByte(']')
		}
		sb.WriteByte('<')
		e.Elem.writeSignature(sb)
		sb.WriteByte('>')
	case exprList:
		sb.WriteString("list<")
		e.Elem.writeSignature(sb)
		sb.WriteByte('>')
	case exprOptional:
		sb.WriteString("optional<")
		e.Elem.writeSignature(sb)
		sb.WriteByte('>')
	case exprMap:
		sb.WriteString("map<")
		e.Key.writeSignature(sb)
		sb.WriteByte(',')
		e.Value.writeSignature(sb)
		sb.WriteByte('>')
	default:
		switch e.Val {
		case valBool:
			sb.WriteString("bool")
		case valInt8:
			sb.WriteString("int8")
		case valInt16:
			sb.WriteString("int16")
		case valChar:
			sb.WriteString("char")
		case valInt32:
			sb.WriteString("int32")
		case valInt64:
			sb.WriteString("int64")
		case valFloat32:
			sb.WriteString("float32")
		case valFloat64:
			sb.WriteString("float64")
		case valString:
			sb.WriteString("string")
		case valUUID:
			sb.WriteString("uuid")
		case valEnum:
			sb.WriteString("enum:")
			sb.WriteString(fullName(e.Type))
		case valStruct:
			sb.WriteString("struct:")
			t := e.Type
			if t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			sb.WriteString(fullName(t))
		case valVariant:
			sb.WriteString("variant:")
			sb.WriteString(fullName(e.Type))
		case valSame:
			sb.WriteString("self")
		}
	}
}

// ==========================================================================
// Reachable-type discovery
// ==========================================================================

// discoverReachable walks the type graph from root and returns every
// concrete type that needs an ordinal, sorted lexicographically by
// fully-qualified name. Interfaces contribute their registered variants but
// never receive ordinals themselves.
func discoverReachable(root reflect.Type) ([]reflect.Type, error) {
	seen := make(map[reflect.Type]bool)
	var concrete []reflect.Type

	var walk func(t reflect.Type) error
	walk = func(t reflect.Type) error {
		if t == uuidType {
			return nil
		}
		if info, ok := getOptionalInfo(t); ok {
			return walk(info.valueType)
		}
		if _, ok := lookupEnum(t); ok {
			if !seen[t] {
				seen[t] = true
				concrete = append(concrete, t)
			}
			return nil
		}
		switch t.Kind() {
		case reflect.Bool, reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16,
			reflect.Int32, reflect.Int, reflect.Int64,
			reflect.Float32, reflect.Float64, reflect.String:
			return nil
		case reflect.Struct:
			if seen[t] {
				return nil
			}
			seen[t] = true
			concrete = append(concrete, t)
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				if !f.IsExported() {
					continue
				}
				if err := walk(f.Type); err != nil {
					return fmt.Errorf("%s.%s: %w", fullName(t), f.Name, err)
				}
			}
			return nil
		case reflect.Ptr:
			if t.Elem().Kind() != reflect.Struct {
				return fmt.Errorf("%w: pointer to %s", ErrUnsupportedType, t.Elem())
			}
			return walk(t.Elem())
		case reflect.Interface:
			infos, ok := lookupVariants(t)
			if !ok {
				return fmt.Errorf("%w: interface %s has no registered variants (closed hierarchies must be declared with RegisterVariants)", ErrUnsupportedType, t)
			}
			for _, info := range infos {
				if err := walk(info.structType); err != nil {
					return err
				}
			}
			return nil
		case reflect.Slice, reflect.Array:
			return walk(t.Elem())
		case reflect.Map:
			if err := walk(t.Key()); err != nil {
				return err
			}
			return walk(t.Elem())
		default:
			return fmt.Errorf("%w: %s (kind %s)", ErrUnsupportedType, t, t.Kind())
		}
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Slice(concrete, func(i, j int) bool {
		return fullName(concrete[i]) < fullName(concrete[j])
	})
	return concrete, nil
}
