// Copyright 2024-2025 The evl Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package comp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/comp"
)

func TestArithmeticIdentities(t *testing.T) {
	t.Parallel()

	zero := comp.IntegerFromS64(0)
	one := comp.IntegerFromS64(1)

	for _, n := range []int64{0, 1, -1, 7, -42, 1 << 40, comp.IntegerMax, comp.IntegerMin} {
		a := comp.IntegerFromS64(n)
		assert.True(t, comp.Equal(comp.Add(a, zero), a), "add(%d, 0)", n)
		assert.True(t, comp.Equal(comp.Mul(a, one), a), "mul(%d, 1)", n)
		assert.True(t, comp.Equal(comp.Sub(a, a), zero), "sub(%d, %d)", n, n)
	}
}

func TestDivModIdentity(t *testing.T) {
	t.Parallel()

	for _, pair := range [][2]int64{{7, 3}, {-7, 3}, {7, -3}, {-7, -3}, {100, 10}, {1, 5}} {
		a := comp.IntegerFromS64(pair[0])
		b := comp.IntegerFromS64(pair[1])

		q, ok := comp.Div(a, b)
		require.True(t, ok)
		r, ok := comp.Mod(a, b)
		require.True(t, ok)

		// a == div(a, b)*b + mod(a, b)
		assert.True(t, comp.Equal(a, comp.Add(comp.Mul(q, b), r)), "%d / %d", pair[0], pair[1])
	}
}

func TestDivModByZero(t *testing.T) {
	t.Parallel()

	a := comp.IntegerFromS64(5)
	zero := comp.IntegerFromS64(0)

	_, ok := comp.Div(a, zero)
	assert.False(t, ok)
	_, ok = comp.Mod(a, zero)
	assert.False(t, ok)
}

func TestOverflowIsFatal(t *testing.T) {
	t.Parallel()

	maxv := comp.IntegerFromS64(comp.IntegerMax)
	one := comp.IntegerFromS64(1)
	two := comp.IntegerFromS64(2)

	assert.Panics(t, func() { comp.Add(maxv, one) })
	assert.Panics(t, func() { comp.Sub(comp.IntegerFromS64(comp.IntegerMin), one) })
	assert.Panics(t, func() { comp.Mul(maxv, two) })
	assert.Panics(t, func() { comp.IntegerFromU64(uint64(comp.IntegerMax) + 1) })
	assert.Panics(t, func() { comp.Neg(comp.IntegerFromS64(comp.IntegerMin)) })
}

func TestBitwiseRequiresNonNegative(t *testing.T) {
	t.Parallel()

	pos := comp.IntegerFromS64(0b1100)
	neg := comp.IntegerFromS64(-1)

	v, ok := comp.And(pos, comp.IntegerFromS64(0b1010))
	require.True(t, ok)
	assert.EqualValues(t, 0b1000, v.Value())

	v, ok = comp.Or(pos, comp.IntegerFromS64(0b0010))
	require.True(t, ok)
	assert.EqualValues(t, 0b1110, v.Value())

	v, ok = comp.Xor(pos, comp.IntegerFromS64(0b1010))
	require.True(t, ok)
	assert.EqualValues(t, 0b0110, v.Value())

	for _, f := range []func(a, b comp.Integer) (comp.Integer, bool){comp.And, comp.Or, comp.Xor} {
		_, ok := f(neg, pos)
		assert.False(t, ok)
	}
}

func TestShifts(t *testing.T) {
	t.Parallel()

	one := comp.IntegerFromS64(1)
	v, ok := comp.Shl(one, comp.IntegerFromS64(10))
	require.True(t, ok)
	assert.EqualValues(t, 1<<10, v.Value())

	v, ok = comp.Shr(comp.IntegerFromS64(-8), comp.IntegerFromS64(1))
	require.True(t, ok)
	assert.EqualValues(t, -4, v.Value())

	_, ok = comp.Shl(one, comp.IntegerFromS64(-1))
	assert.False(t, ok)
	_, ok = comp.Shr(one, comp.IntegerFromS64(-1))
	assert.False(t, ok)

	assert.Panics(t, func() { comp.Shl(comp.IntegerFromS64(comp.IntegerMax), one) })
}

func TestExtraction(t *testing.T) {
	t.Parallel()

	v := comp.IntegerFromS64(300)
	_, ok := v.AsU64(8)
	assert.False(t, ok)

	u, ok := v.AsU64(16)
	require.True(t, ok)
	assert.EqualValues(t, 300, u)

	_, ok = comp.IntegerFromS64(-1).AsU64(64)
	assert.False(t, ok)

	s, ok := comp.IntegerFromS64(-128).AsS64(8)
	require.True(t, ok)
	assert.EqualValues(t, -128, s)

	_, ok = comp.IntegerFromS64(128).AsS64(8)
	assert.False(t, ok)
}

func TestFloatStubs(t *testing.T) {
	t.Parallel()

	f := comp.FloatFromF64(1.5)
	assert.Equal(t, 1.5, f.F64())
	assert.Panics(t, func() { comp.FloatAdd(f, f) })
	assert.Panics(t, func() { comp.IntegerFromFloat(f, false) })
}
