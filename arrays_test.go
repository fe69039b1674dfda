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
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBlob struct {
	Raw    []byte
	Bits   []bool
	Ints   []int32
	Longs  []int64
	Shorts []int16
	Floats []float64
	Names  []string
	IDs    []uuid.UUID
	Grid   [4]int16
}

func TestArrayRoundTrip(t *testing.T) {
	v := testBlob{
		Raw:    []byte{0, 1, 2, 255},
		Bits:   []bool{true, false, true, true, false, false, true, false, true},
		Ints:   []int32{0, -1, math.MaxInt32, math.MinInt32},
		Longs:  []int64{math.MaxInt64, math.MinInt64, 0},
		Shorts: []int16{-1, 0, 1, math.MaxInt16},
		Floats: []float64{0, -1.5, math.Inf(1)},
		Names:  []string{"", "a", "longer string value"},
		IDs:    []uuid.UUID{uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), {}},
		Grid:   [4]int16{4, 3, 2, 1},
	}
	require.Equal(t, v, roundTrip(t, v))
}

func TestArrayNilSlicesStayNil(t *testing.T) {
	out := roundTrip(t, testBlob{})
	require.Nil(t, out.Raw)
	require.Nil(t, out.Ints)
	require.Nil(t, out.Names)
}

type testIntArray struct{ Values []int32 }

func TestInt32WidthChoice(t *testing.T) {
	p, err := New[testIntArray]()
	require.NoError(t, err)

	small := testIntArray{Values: make([]int32, 100)}
	for i := range small.Values {
		small.Values[i] = int32(i % 64) // [0, 63]
	}
	wide := testIntArray{Values: make([]int32, 100)}
	for i := range wide.Values {
		if i%2 == 0 {
			wide.Values[i] = math.MaxInt32
		} else {
			wide.Values[i] = math.MinInt32
		}
	}

	smallData, err := p.Marshal(small)
	require.NoError(t, err)
	wideData, err := p.Marshal(wide)
	require.NoError(t, err)

	// Small values fit one varint byte each; the wide array must fall back
	// to fixed 4-byte elements instead of paying 5 bytes per varint.
	assert.Less(t, len(smallData), 200)
	assert.GreaterOrEqual(t, len(wideData), 400)
	assert.Less(t, len(wideData), 500)

	for _, v := range []testIntArray{small, wide} {
		out, err := p.Unmarshal(mustMarshal(t, p, v))
		require.NoError(t, err)
		require.Equal(t, v, out)
	}
}

func mustMarshal[T any](t *testing.T, p *Pickler[T], v T) []byte {
	t.Helper()
	data, err := p.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestWidthHeuristicSampling(t *testing.T) {
	small := make([]int32, 100)
	require.True(t, varint32Worthwhile(reflect.ValueOf(small), len(small)))

	wide := make([]int32, 100)
	for i := range wide {
		wide[i] = math.MinInt32
	}
	require.False(t, varint32Worthwhile(reflect.ValueOf(wide), len(wide)))

	// Only the leading sample is inspected, so a big tail value cannot
	// flip a fully-small prefix.
	mixed := make([]int32, 100)
	mixed[99] = math.MaxInt32
	require.True(t, varint32Worthwhile(reflect.ValueOf(mixed), len(mixed)))

	longs := make([]int64, 10)
	require.True(t, varint64Worthwhile(reflect.ValueOf(longs), len(longs)))
	for i := range longs {
		longs[i] = math.MaxInt64
	}
	require.False(t, varint64Worthwhile(reflect.ValueOf(longs), len(longs)))
}

type testBoolArray struct{ Bits []bool }

func TestBoolArrayPacksToBitset(t *testing.T) {
	p, err := New[testBoolArray]()
	require.NoError(t, err)

	empty := mustMarshal(t, p, testBoolArray{Bits: []bool{}})
	packed := mustMarshal(t, p, testBoolArray{Bits: make([]bool, 64)})
	// 64 bools pack into 8 payload bytes; the count varint grows by one.
	require.Equal(t, len(empty)+9, len(packed))

	v := testBoolArray{Bits: []bool{true, true, false, true, false, false, false, true, true}}
	out, err := p.Unmarshal(mustMarshal(t, p, v))
	require.NoError(t, err)
	require.Equal(t, v, out)
}

type testByteArray struct{ Raw []byte }

func TestByteArrayIsRawBlob(t *testing.T) {
	p, err := New[testByteArray]()
	require.NoError(t, err)
	empty := mustMarshal(t, p, testByteArray{Raw: []byte{}})
	blob := mustMarshal(t, p, testByteArray{Raw: make([]byte, 100)})
	// 100 raw bytes plus one extra count byte.
	require.Equal(t, len(empty)+101, len(blob))
}

func TestFixedArrayLengthIsChecked(t *testing.T) {
	type fiveShorts struct{ Grid [5]int16 }
	type fourShorts struct{ Grid [4]int16 }

	writer, err := New[fiveShorts](WithCompatibility(CompatibilityAll))
	require.NoError(t, err)
	data := mustMarshal(t, writer, fiveShorts{Grid: [5]int16{1, 2, 3, 4, 5}})

	reader, err := New[fourShorts](WithCompatibility(CompatibilityAll))
	require.NoError(t, err)
	_, err = reader.Unmarshal(data)
	require.ErrorIs(t, err, ErrCorrupt)
}
