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
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noframework/pickle/optional"
)

func analyze(t *testing.T, typ any) *TypeExpr {
	t.Helper()
	expr, err := analyzeType(reflect.TypeOf(typ), nil)
	require.NoError(t, err)
	return expr
}

func TestAnalyzeScalars(t *testing.T) {
	assert.Equal(t, valBool, analyze(t, false).Val)
	assert.Equal(t, valInt8, analyze(t, int8(0)).Val)
	assert.Equal(t, valInt8, analyze(t, uint8(0)).Val)
	assert.Equal(t, valInt16, analyze(t, int16(0)).Val)
	assert.Equal(t, valChar, analyze(t, uint16(0)).Val)
	assert.Equal(t, valInt32, analyze(t, int32(0)).Val)
	assert.Equal(t, valInt32, analyze(t, rune(0)).Val)
	assert.Equal(t, valInt64, analyze(t, int64(0)).Val)
	assert.Equal(t, valInt64, analyze(t, int(0)).Val)
	assert.Equal(t, valFloat32, analyze(t, float32(0)).Val)
	assert.Equal(t, valFloat64, analyze(t, float64(0)).Val)
	assert.Equal(t, valString, analyze(t, "").Val)
	assert.Equal(t, valUUID, analyze(t, uuid.UUID{}).Val)
}

func TestAnalyzeContainers(t *testing.T) {
	list := analyze(t, []testAddress{})
	assert.Equal(t, exprList, list.Kind)
	assert.Equal(t, valStruct, list.Elem.Val)

	packed := analyze(t, []int32{})
	assert.Equal(t, exprArray, packed.Kind)
	assert.Equal(t, -1, packed.FixedLen)

	fixed := analyze(t, [8]float64{})
	assert.Equal(t, exprArray, fixed.Kind)
	assert.Equal(t, 8, fixed.FixedLen)

	opt := analyze(t, optional.Optional[string]{})
	assert.Equal(t, exprOptional, opt.Kind)
	assert.Equal(t, valString, opt.Elem.Val)

	m := analyze(t, map[string][]int64{})
	assert.Equal(t, exprMap, m.Kind)
	assert.Equal(t, valString, m.Key.Val)
	assert.Equal(t, exprArray, m.Value.Kind)
}

func TestAnalyzeSelfReference(t *testing.T) {
	nodeType := reflect.TypeOf(testNode{})
	next, ok := nodeType.FieldByName("Next")
	require.True(t, ok)
	expr, err := analyzeType(next.Type, nodeType)
	require.NoError(t, err)
	assert.Equal(t, valSame, expr.Val)
	assert.True(t, expr.Nullable)

	// The same pointer type inside a different owner is an ordinary
	// nullable struct reference.
	expr, err = analyzeType(next.Type, reflect.TypeOf(testAddress{}))
	require.NoError(t, err)
	assert.Equal(t, valStruct, expr.Val)
}

func TestAnalyzeRegisteredKinds(t *testing.T) {
	assert.Equal(t, valEnum, analyze(t, colorRed).Val)

	ifaceType := reflect.TypeOf((*testShape)(nil)).Elem()
	expr, err := analyzeType(ifaceType, nil)
	require.NoError(t, err)
	assert.Equal(t, valVariant, expr.Val)
}

func TestAnalyzeRejectsUnsupported(t *testing.T) {
	type badChan struct{ C chan int }
	_, err := New[badChan]()
	require.ErrorIs(t, err, ErrUnsupportedType)

	type badUint struct{ N uint64 }
	_, err = New[badUint]()
	require.ErrorIs(t, err, ErrUnsupportedType)

	type badIface struct{ V interface{ foo() } }
	_, err = New[badIface]()
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "RegisterVariants")

	type badPtr struct{ P *int }
	_, err = New[badPtr]()
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDiscoverReachableIsSorted(t *testing.T) {
	types, err := discoverReachable(reflect.TypeOf(testDrawing{}))
	require.NoError(t, err)
	names := make([]string, len(types))
	for i, typ := range types {
		names[i] = fullName(typ)
	}
	require.Equal(t, []string{
		"github.com/noframework/pickle.testCircle",
		"github.com/noframework/pickle.testDrawing",
		"github.com/noframework/pickle.testRect",
	}, names)
}

func TestSignatureIsDeterministic(t *testing.T) {
	a, err := analyzeType(reflect.TypeOf(testPerson{}), nil)
	require.NoError(t, err)
	b, err := analyzeType(reflect.TypeOf(testPerson{}), nil)
	require.NoError(t, err)
	require.Equal(t, a.signature(), b.signature())

	p1, err := New[testPerson]()
	require.NoError(t, err)
	p2, err := New[testPerson]()
	require.NoError(t, err)
	v := testPerson{Name: "stable"}
	d1, err := p1.Marshal(v)
	require.NoError(t, err)
	d2, err := p2.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, d1, d2, "independently built picklers must agree on bytes")
}
