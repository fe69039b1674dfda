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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPalette struct {
	Primary   testColor
	Secondary testColor
	History   []testColor
}

func TestEnumRoundTrip(t *testing.T) {
	v := testPalette{
		Primary:   colorBlue,
		Secondary: colorRed,
		History:   []testColor{colorGreen, colorGreen, colorRed},
	}
	require.Equal(t, v, roundTrip(t, v))
}

func TestEnumAsRoot(t *testing.T) {
	p, err := New[testColor]()
	require.NoError(t, err)
	data, err := p.Marshal(colorGreen)
	require.NoError(t, err)
	out, err := p.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, colorGreen, out)
}

func TestEnumRejectsOutOfRangeValue(t *testing.T) {
	p, err := New[testColor]()
	require.NoError(t, err)
	_, err = p.Marshal(testColor(17))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), "17")

	_, err = p.Marshal(testColor(-1))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestEnumRejectsCorruptConstant(t *testing.T) {
	p, err := New[testColor]()
	require.NoError(t, err)
	data, err := p.Marshal(colorBlue)
	require.NoError(t, err)
	// The constant ordinal is the trailing varint.
	data[len(data)-1] = 0x20 // zig-zag for 16
	_, err = p.Unmarshal(data)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestEnumName(t *testing.T) {
	name, ok := EnumName(colorGreen)
	require.True(t, ok)
	assert.Equal(t, "GREEN", name)

	_, ok = EnumName(testColor(99))
	assert.False(t, ok)

	_, ok = EnumName(int32(1))
	assert.False(t, ok)
}

func TestRegisterEnumValidation(t *testing.T) {
	require.Error(t, RegisterEnum[int32]("not", "named"))
	type unsignedEnum uint16
	require.Error(t, RegisterEnum[unsignedEnum]("A"))
	type emptyEnum int
	require.Error(t, RegisterEnum[emptyEnum]())
}
