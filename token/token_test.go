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

package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evl-lang/evl/token"
)

func TestOperatorRanges(t *testing.T) {
	t.Parallel()

	// The parser's operator tables are keyed by these ranges; their sizes
	// must match the table lengths it declares.
	assert.EqualValues(t, 18, token.LastUnaryOperator-token.FirstUnaryOperator+1)
	assert.EqualValues(t, 37, token.LastBinaryOperator-token.FirstBinaryOperator+1)

	// The unary range opens with '(' and closes with '+'.
	assert.Equal(t, token.ParenL, token.FirstUnaryOperator)
	assert.Equal(t, token.OpAdd, token.LastUnaryOperator)
	assert.Equal(t, token.OpMemberOrRef, token.FirstBinaryOperator)
	assert.Equal(t, token.OpSetShr, token.LastBinaryOperator)
}

func TestSpellings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+:=", token.OpSetAddTC.String())
	assert.Equal(t, "[...]", token.TypTailArray.String())
	assert.Equal(t, ".[", token.ArrayInitializer.String())
	assert.Equal(t, "if", token.KwdIf.String())
	assert.Equal(t, "<unknown>", token.Kind(255).String())
}

func TestKeywordsCoverEveryKwdKind(t *testing.T) {
	t.Parallel()

	seen := make(map[token.Kind]bool)
	for _, kw := range token.Keywords() {
		assert.False(t, seen[kw.Kind], "keyword %q registered twice", kw.Spelling)
		seen[kw.Kind] = true
		assert.Equal(t, kw.Spelling, kw.Kind.String())
	}
	assert.Len(t, seen, 29)
}
