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

package intern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/token"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	p := intern.NewPool()
	for _, s := range []string{"", "x", "main", "a_very_long_identifier_indeed", "\x00\xff"} {
		id := p.ID(s)
		require.False(t, id.Nil())
		assert.Equal(t, s, p.Bytes(id))
		assert.Equal(t, id, p.ID(s), "interning must be stable across calls")
		assert.Equal(t, id, p.IDBytes([]byte(s)))
	}
}

func TestDistinctSpellingsDistinctIDs(t *testing.T) {
	t.Parallel()

	p := intern.NewPool()
	a := p.ID("foo")
	b := p.ID("bar")
	assert.NotEqual(t, a, b)
}

func TestKeywordTokens(t *testing.T) {
	t.Parallel()

	p := intern.NewPool()
	for _, kw := range token.Keywords() {
		id := p.ID(kw.Spelling)
		assert.Equal(t, kw.Kind, p.Entry(id).Token, "keyword %q", kw.Spelling)
	}
	assert.Equal(t, token.Ident, p.Entry(p.ID("frobnicate")).Token)
}

func TestHash(t *testing.T) {
	t.Parallel()

	// Reference values for the FNV-1a 32-bit parameters.
	assert.Equal(t, uint32(2166136261), intern.Hash(""))
	assert.Equal(t, uint32(0xe40c292c), intern.Hash("a"))
	assert.Equal(t, intern.Hash("same"), intern.Hash("same"))
}
