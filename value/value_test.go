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

package value_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/types"
	"github.com/evl-lang/evl/value"
)

func TestStackLIFO(t *testing.T) {
	t.Parallel()

	tp := types.NewPool()
	compInt := tp.Primitive(types.TagCompInteger, nil)
	boolean := tp.Primitive(types.TagBoolean, nil)

	s := value.NewStack()
	require.Equal(t, 0, s.Depth())

	a := s.Push(compInt, 8, 8)
	binary.LittleEndian.PutUint64(s.Payload(a, 8), 42)

	b := s.Push(boolean, 1, 1)
	s.Payload(b, 1)[0] = 1

	require.Equal(t, 2, s.Depth())
	assert.Equal(t, b, s.Top())
	assert.Equal(t, a, s.At(1))
	assert.Equal(t, boolean, s.Type(b))
	assert.Equal(t, compInt, s.Type(a))

	s.Pop()
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, a, s.Top())
	assert.EqualValues(t, 42, binary.LittleEndian.Uint64(s.Payload(a, 8)))

	s.Pop()
	assert.Panics(t, func() { s.Pop() })
}

func TestStackSlotZeroInvalid(t *testing.T) {
	t.Parallel()

	s := value.NewStack()
	tp := types.NewPool()
	slot := s.Push(tp.Primitive(types.TagVoid, nil), 0, 1)
	assert.False(t, slot.Nil())
}

func TestGlobalsRoundTrip(t *testing.T) {
	t.Parallel()

	tp := types.NewPool()
	i32 := tp.NewInteger(32, true)
	g := value.NewGlobals(tp)

	id := g.Make(i32, 4, 4, []byte{7, 0, 0, 0})
	require.False(t, id.Nil())

	typ, data := g.Get(id)
	assert.Equal(t, i32, typ)
	assert.EqualValues(t, 7, binary.LittleEndian.Uint32(data))

	// Writes through Get persist.
	binary.LittleEndian.PutUint32(data, 9)
	_, again := g.Get(id)
	assert.EqualValues(t, 9, binary.LittleEndian.Uint32(again))
}

func TestReferences(t *testing.T) {
	t.Parallel()

	tp := types.NewPool()
	i32 := tp.NewInteger(32, true)
	g := value.NewGlobals(tp)
	id := g.Make(i32, 4, 4, []byte{1, 0, 0, 0})

	s := value.NewStack()
	slot := s.Push(i32.WithAssignability(true), 8, 8)
	s.MarkRef(slot, id)

	require.True(t, s.IsRef(slot))
	assert.Equal(t, id, s.Referenced(slot))

	got := s.Access(slot, 4, g)
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(got))
}
