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
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noframework/pickle/optional"
)

type testAddress struct {
	Street string
	City   string
}

type testPerson struct {
	Name   string
	Age    int32
	Email  optional.Optional[string]
	Home   *testAddress
	Tags   []string
	Scores map[string]int64
	ID     uuid.UUID
}

type testNode struct {
	Label string
	Next  *testNode
}

type testShape interface{ area() float64 }

type testCircle struct{ Radius float64 }

func (c testCircle) area() float64 { return math.Pi * c.Radius * c.Radius }

type testRect struct{ W, H float64 }

func (r testRect) area() float64 { return r.W * r.H }

type testDrawing struct {
	Title  string
	Shapes []testShape
}

type testColor int

const (
	colorRed testColor = iota
	colorGreen
	colorBlue
)

type testInner struct{ Values []int32 }

type testMiddle struct{ Inner map[string]*testInner }

type testOuter struct {
	Middles []testMiddle
	Flag    optional.Optional[bool]
}

func init() {
	if err := RegisterVariants[testShape](testCircle{}, testRect{}); err != nil {
		panic(err)
	}
	if err := RegisterEnum[testColor]("RED", "GREEN", "BLUE"); err != nil {
		panic(err)
	}
}

func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	p, err := New[T](WithCompatibility(CompatibilityNone))
	require.NoError(t, err)
	data, err := p.Marshal(v)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.MaxSize(v), len(data), "MaxSize must never underestimate")
	out, err := p.Unmarshal(data)
	require.NoError(t, err)
	return out
}

func TestRoundTripStruct(t *testing.T) {
	home := &testAddress{Street: "1 Main St", City: "Springfield"}
	v := testPerson{
		Name:   "Ada",
		Age:    36,
		Email:  optional.Some("ada@example.com"),
		Home:   home,
		Tags:   []string{"x", "y", "z"},
		Scores: map[string]int64{"alpha": -1, "beta": 1 << 40},
		ID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}
	require.Equal(t, v, roundTrip(t, v))
}

func TestRoundTripZeroValue(t *testing.T) {
	require.Equal(t, testPerson{}, roundTrip(t, testPerson{}))
}

func TestRoundTripEmptyOptionalAndNilPointer(t *testing.T) {
	v := testPerson{Name: "nobody", Email: optional.None[string]()}
	out := roundTrip(t, v)
	require.True(t, out.Email.IsNone())
	require.Nil(t, out.Home)
	require.Nil(t, out.Tags)
	require.Nil(t, out.Scores)
}

func TestRoundTripDeepNesting(t *testing.T) {
	v := testOuter{
		Middles: []testMiddle{
			{Inner: map[string]*testInner{
				"a": {Values: []int32{1, 2, 3}},
				"b": {Values: nil},
				"c": nil,
			}},
			{Inner: nil},
		},
		Flag: optional.Some(true),
	}
	require.Equal(t, v, roundTrip(t, v))
}

func TestRoundTripSelfReference(t *testing.T) {
	v := testNode{Label: "a", Next: &testNode{Label: "b", Next: &testNode{Label: "c"}}}
	require.Equal(t, v, roundTrip(t, v))
}

func TestRoundTripVariants(t *testing.T) {
	v := testDrawing{
		Title:  "shapes",
		Shapes: []testShape{testCircle{Radius: 2}, testRect{W: 3, H: 4}, testCircle{Radius: 0.5}},
	}
	require.Equal(t, v, roundTrip(t, v))
}

func TestRoundTripVariantRoot(t *testing.T) {
	p, err := New[testShape]()
	require.NoError(t, err)
	data, err := p.Marshal(testRect{W: 2, H: 5})
	require.NoError(t, err)
	out, err := p.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, testShape(testRect{W: 2, H: 5}), out)
}

func TestRoundTripNilVariantRoot(t *testing.T) {
	p, err := New[testShape]()
	require.NoError(t, err)
	data, err := p.Marshal(nil)
	require.NoError(t, err)
	out, err := p.Unmarshal(data)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEncodeManyDecodeMany(t *testing.T) {
	p, err := New[testAddress]()
	require.NoError(t, err)
	vs := []testAddress{
		{Street: "1st", City: "A"},
		{Street: "2nd", City: "B"},
		{Street: "3rd", City: "C"},
	}
	data, err := p.MarshalMany(vs)
	require.NoError(t, err)
	out, err := p.UnmarshalMany(data)
	require.NoError(t, err)
	require.Equal(t, vs, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	p, err := New[testAddress]()
	require.NoError(t, err)
	_, err = p.Unmarshal([]byte{0x42, 0x42, 0x42})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	p, err := New[testPerson]()
	require.NoError(t, err)
	data, err := p.Marshal(testPerson{Name: "truncate me", Tags: []string{"t"}})
	require.NoError(t, err)
	for _, cut := range []int{1, len(data) / 2, len(data) - 1} {
		_, err := p.Unmarshal(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestDepthLimit(t *testing.T) {
	head := &testNode{Label: "0"}
	cur := head
	for i := 0; i < 150; i++ {
		cur.Next = &testNode{}
		cur = cur.Next
	}

	limited, err := New[testNode]()
	require.NoError(t, err)
	_, err = limited.Marshal(*head)
	require.ErrorIs(t, err, ErrDepthExceeded)

	relaxed, err := New[testNode](WithMaxDepth(500))
	require.NoError(t, err)
	data, err := relaxed.Marshal(*head)
	require.NoError(t, err)

	// A reader with the default limit must reject what the relaxed writer
	// produced instead of recursing without bound.
	_, err = limited.Unmarshal(data)
	require.ErrorIs(t, err, ErrDepthExceeded)

	out, err := relaxed.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, *head, out)
}

func TestForIsMemoized(t *testing.T) {
	a, err := For[testAddress]()
	require.NoError(t, err)
	b, err := For[testAddress]()
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestUnsupportedRootType(t *testing.T) {
	_, err := New[string]()
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDeterministicMapEncoding(t *testing.T) {
	p, err := New[testPerson]()
	require.NoError(t, err)
	v := testPerson{Scores: map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}}
	first, err := p.Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Marshal(v)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
