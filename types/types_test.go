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

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/types"
)

func TestDedup(t *testing.T) {
	t.Parallel()

	p := types.NewPool()

	assert.Equal(t, p.Primitive(types.TagVoid, nil), p.Primitive(types.TagVoid, nil))
	assert.Equal(t, p.NewInteger(32, true), p.NewInteger(32, true))
	assert.NotEqual(t, p.NewInteger(32, true), p.NewInteger(32, false))
	assert.NotEqual(t, p.NewInteger(32, true), p.NewInteger(64, true))
	assert.NotEqual(t, p.Primitive(types.TagVoid, nil), p.Primitive(types.TagType, nil))

	u8 := p.NewInteger(8, false)
	s1 := p.NewSlice(types.Reference{Referenced: u8})
	s2 := p.NewSlice(types.Reference{Referenced: u8})
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, p.NewPtr(types.Reference{Referenced: u8}))
}

func TestAssignabilityBit(t *testing.T) {
	t.Parallel()

	p := types.NewPool()
	id := p.NewInteger(32, true)

	lv := id.WithAssignability(true)
	assert.True(t, lv.Assignable())
	assert.False(t, id.Assignable())
	assert.Equal(t, id, lv.Strip())

	// The bit is not part of identity.
	assert.Equal(t, types.TagInteger, p.Tag(lv))
	assert.Equal(t, p.AsInteger(id), p.AsInteger(lv))
}

func TestAliases(t *testing.T) {
	t.Parallel()

	p := types.NewPool()
	ids := intern.NewPool()
	inner := p.NewInteger(32, true)

	named := p.NewAlias(inner, false, 0, ids.ID("MyInt"))
	require.NotEqual(t, inner, named)
	assert.Equal(t, named, p.NewAlias(inner, false, 0, ids.ID("MyInt")))
	assert.Equal(t, inner, p.Dealias(named))
	assert.Equal(t, inner, p.DealiasTransparent(named))

	d1 := p.NewAlias(inner, true, 0, intern.Invalid)
	d2 := p.NewAlias(inner, true, 0, intern.Invalid)
	assert.NotEqual(t, d1, d2, "distinct aliases are never equal to each other")
	assert.NotEqual(t, d1, inner, "distinct aliases are never equal to their target")
	assert.Equal(t, inner, p.Dealias(d1), "structure queries see through distinct aliases")
	assert.Equal(t, d1, p.DealiasTransparent(d1), "conversions do not")
}

func TestImplicitConversions(t *testing.T) {
	t.Parallel()

	p := types.NewPool()
	u8 := p.NewInteger(8, false)
	i32 := p.NewInteger(32, true)
	f64 := p.NewFloat(64)
	compInt := p.Primitive(types.TagCompInteger, nil)
	compFloat := p.Primitive(types.TagCompFloat, nil)
	compString := p.Primitive(types.TagCompString, nil)

	u8Slice := p.NewSlice(types.Reference{Referenced: u8})
	u8Array := p.NewArray(types.Array{Element: u8, Count: 4})
	u8MultiPtr := p.NewPtr(types.Reference{Referenced: u8, IsMulti: true})
	u8Ptr := p.NewPtr(types.Reference{Referenced: u8})

	assert.True(t, p.CanImplicitlyConvert(i32, i32))
	assert.True(t, p.CanImplicitlyConvert(compInt, i32))
	assert.False(t, p.CanImplicitlyConvert(i32, compInt))
	assert.True(t, p.CanImplicitlyConvert(compFloat, f64))
	assert.False(t, p.CanImplicitlyConvert(compFloat, i32))

	assert.True(t, p.CanImplicitlyConvert(u8Array, u8Slice))
	assert.True(t, p.CanImplicitlyConvert(u8Array, u8MultiPtr))
	assert.False(t, p.CanImplicitlyConvert(u8Array, u8Ptr))
	assert.True(t, p.CanImplicitlyConvert(u8Slice, u8MultiPtr))
	assert.False(t, p.CanImplicitlyConvert(u8Slice, u8Array))

	assert.True(t, p.CanImplicitlyConvert(compString, u8Slice))
	assert.True(t, p.CanImplicitlyConvert(compString, u8Array))
	assert.True(t, p.CanImplicitlyConvert(compString, u8MultiPtr))
	i8Slice := p.NewSlice(types.Reference{Referenced: p.NewInteger(8, true)})
	assert.False(t, p.CanImplicitlyConvert(compString, i8Slice))

	// Distinct aliases are opaque; transparent aliases are not.
	ids := intern.NewPool()
	named := p.NewAlias(i32, false, 0, ids.ID("N"))
	distinct := p.NewAlias(i32, true, 0, ids.ID("D"))
	assert.True(t, p.CanImplicitlyConvert(named, i32))
	assert.False(t, p.CanImplicitlyConvert(distinct, i32))
}

func TestCommonType(t *testing.T) {
	t.Parallel()

	p := types.NewPool()
	i32 := p.NewInteger(32, true)
	f32 := p.NewFloat(32)
	compInt := p.Primitive(types.TagCompInteger, nil)
	compFloat := p.Primitive(types.TagCompFloat, nil)

	assert.Equal(t, i32, p.CommonType(i32, i32))
	assert.Equal(t, i32, p.CommonType(compInt, i32))
	assert.Equal(t, i32, p.CommonType(i32, compInt))
	assert.Equal(t, f32, p.CommonType(compFloat, f32))
	assert.Equal(t, compInt, p.CommonType(compInt, compInt))
	assert.Equal(t, types.Invalid, p.CommonType(i32, f32))
	assert.Equal(t, types.Invalid, p.CommonType(compInt, compFloat))

	// Assignability never survives into the common type.
	assert.False(t, p.CommonType(i32.WithAssignability(true), i32).Assignable())
}

func TestOpenComposite(t *testing.T) {
	t.Parallel()

	p := types.NewPool()
	ids := intern.NewPool()
	i32 := p.NewInteger(32, true)

	c := p.CreateOpen(0)
	require.True(t, p.IsOpen(c))

	p.AddOpenMember(c, types.Member{Name: ids.ID("x"), Type: i32, Offset: 0})
	p.AddOpenMember(c, types.Member{
		Name:           ids.ID("y"),
		HasPendingType: true,
		Resumption:     types.ResumptionID(2),
		Offset:         4,
	})
	p.Close(c, 8, 4, 8)
	assert.False(t, p.IsOpen(c))

	m, ok := p.MemberByName(c, ids.ID("x"))
	require.True(t, ok)
	assert.Equal(t, i32, m.Type)
	assert.EqualValues(t, 0, m.Rank)

	_, ok = p.MemberByName(c, ids.ID("nope"))
	assert.False(t, ok)

	m, ok = p.MemberByRank(c, 1)
	require.True(t, ok)
	assert.True(t, m.HasPendingType)

	it := p.IncompleteMembers(c)
	pending, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, ids.ID("y"), pending.Name)
	_, ok = it.Next()
	assert.False(t, ok)

	p.SetIncompleteMemberType(c, 1, i32)
	m, _ = p.MemberByRank(c, 1)
	assert.False(t, m.HasPendingType)
	assert.Equal(t, i32, m.Type)

	it = p.IncompleteMembers(c)
	_, ok = it.Next()
	assert.False(t, ok)

	metrics := p.Metrics(c)
	assert.Equal(t, types.Metrics{Size: 8, Align: 4, Stride: 8}, metrics)

	// Two composites are never deduplicated.
	assert.NotEqual(t, c, p.CreateOpen(0))
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	p := types.NewPool()

	assert.Equal(t, types.Metrics{Size: 0, Align: 1, Stride: 0}, p.Metrics(p.Primitive(types.TagVoid, nil)))
	assert.Equal(t, types.Metrics{Size: 4, Align: 4, Stride: 4}, p.Metrics(p.NewInteger(32, true)))
	assert.Equal(t, types.Metrics{Size: 4, Align: 4, Stride: 4}, p.Metrics(p.NewInteger(17, false)), "widths round up to powers of two")
	assert.Equal(t, types.Metrics{Size: 8, Align: 8, Stride: 8}, p.Metrics(p.Primitive(types.TagCompInteger, nil)))

	u64 := p.NewInteger(64, false)
	arr := p.NewArray(types.Array{Element: u64, Count: 3})
	assert.Equal(t, types.Metrics{Size: 24, Align: 8, Stride: 24}, p.Metrics(arr))
}
