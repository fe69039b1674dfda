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

package optional

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSomeAndNone(t *testing.T) {
	s := Some(42)
	assert.True(t, s.IsSome())
	assert.False(t, s.IsNone())
	assert.Equal(t, 42, s.Unwrap())

	n := None[int]()
	assert.True(t, n.IsNone())
	assert.Equal(t, 7, n.UnwrapOr(7))
	assert.Equal(t, 9, n.UnwrapOrElse(func() int { return 9 }))
	assert.Panics(t, func() { n.Unwrap() })
}

func TestPtrConversions(t *testing.T) {
	v := 5
	require.Equal(t, Some(5), FromPtr(&v))
	require.Equal(t, None[int](), FromPtr[int](nil))

	p := Some("x").Ptr()
	require.NotNil(t, p)
	assert.Equal(t, "x", *p)
	assert.Nil(t, None[string]().Ptr())
}

func TestCombinators(t *testing.T) {
	assert.Equal(t, Some("3"), Map(Some(3), strconv.Itoa))
	assert.Equal(t, None[string](), Map(None[int](), strconv.Itoa))

	half := func(v int) Optional[int] {
		if v%2 == 0 {
			return Some(v / 2)
		}
		return None[int]()
	}
	assert.Equal(t, Some(2), AndThen(Some(4), half))
	assert.Equal(t, None[int](), AndThen(Some(3), half))

	assert.Equal(t, Some(1), Some(1).Or(Some(2)))
	assert.Equal(t, Some(2), None[int]().Or(Some(2)))

	even := func(v int) bool { return v%2 == 0 }
	assert.Equal(t, Some(4), Some(4).Filter(even))
	assert.Equal(t, None[int](), Some(3).Filter(even))

	assert.Equal(t, Some(8), Flatten(Some(Some(8))))
	assert.Equal(t, None[int](), Flatten(None[Optional[int]]()))
}
