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

package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/internal/arena"
)

func TestArena(t *testing.T) {
	t.Parallel()

	var a arena.Arena[int]
	var ptrs []arena.Pointer[int]
	for i := 0; i < 1000; i++ {
		ptrs = append(ptrs, a.New(i*2))
	}

	require.Equal(t, 1000, a.Len())
	for i, p := range ptrs {
		assert.Equal(t, i*2, *p.In(&a))
	}

	// Pointers must remain stable across growth.
	first := ptrs[0].In(&a)
	for i := 0; i < 1000; i++ {
		a.New(i)
	}
	assert.Same(t, first, ptrs[0].In(&a))
}

func TestArenaNil(t *testing.T) {
	t.Parallel()

	var a arena.Arena[string]
	var p arena.Pointer[string]
	assert.True(t, p.Nil())
	assert.Panics(t, func() { p.In(&a) })
}

func TestBytes(t *testing.T) {
	t.Parallel()

	var b arena.Bytes
	off := b.Reserve(3)
	assert.Equal(t, uint32(0), off)

	b.PadTo(8)
	assert.Equal(t, uint32(8), b.Len())

	off = b.Reserve(8)
	copy(b.At(off, 8), "abcdefgh")
	assert.Equal(t, "abcdefgh", string(b.At(off, 8)))

	b.PopTo(off)
	assert.Equal(t, uint32(8), b.Len())

	assert.Panics(t, func() { b.PadTo(3) })
}
