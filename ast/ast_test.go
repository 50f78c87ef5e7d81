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

package ast_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/internal/golden"
)

// buildSample builds
//
//	File
//	  Definition a
//	    LitInteger 1
//	  Definition b
//	    Block
//	      LitInteger 2
//	      LitInteger 3
//
// in the child-before-parent order the parser uses.
func buildSample(t *testing.T, identifiers *intern.Pool) (*ast.Pool, ast.Node) {
	t.Helper()

	b := ast.NewBuilder()
	pool := ast.NewPool()

	lit1 := b.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, 10, ast.U64Attachment(1)...)
	defA := b.Push(lit1, ast.TagDefinition, ast.FlagEmpty, 11, ast.IdentAttachment(identifiers.ID("a"))...)

	lit2 := b.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, 12, ast.U64Attachment(2)...)
	b.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, 13, ast.U64Attachment(3)...)
	block := b.Push(lit2, ast.TagBlock, ast.FlagEmpty, 14, 0, 0)
	b.Push(block, ast.TagDefinition, ast.FlagEmpty, 15, ast.IdentAttachment(identifiers.ID("b"))...)

	rootTok := b.Push(defA, ast.TagFile, ast.FlagEmpty, 16, 2, 0)
	_ = rootTok

	root := pool.Node(b.Complete(pool))
	require.Equal(t, ast.TagFile, root.Tag())
	return pool, root
}

func TestFinalizedLayout(t *testing.T) {
	t.Parallel()

	identifiers := intern.NewPool()
	_, root := buildSample(t, identifiers)

	// Direct children of the root.
	it := ast.DirectChildren(root)

	defA, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, ast.TagDefinition, defA.Tag())
	assert.Equal(t, identifiers.ID("a"), defA.DefinitionName())
	assert.True(t, defA.IsFirstSibling())
	assert.False(t, defA.IsLastSibling())

	defB, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, ast.TagDefinition, defB.Tag())
	assert.Equal(t, identifiers.ID("b"), defB.DefinitionName())
	assert.True(t, defB.IsLastSibling())

	_, ok = it.Next()
	assert.False(t, ok)

	// First children immediately follow their parents.
	lit1 := defA.FirstChild()
	assert.Equal(t, ast.TagLitInteger, lit1.Tag())
	assert.EqualValues(t, 1, lit1.IntegerValue())
	assert.True(t, lit1.IsFirstSibling())
	assert.True(t, lit1.IsLastSibling())
	assert.EqualValues(t, defA.ID()+ast.NodeID(defA.DataDwords()), lit1.ID())

	block := defB.FirstChild()
	require.Equal(t, ast.TagBlock, block.Tag())

	blockIt := ast.DirectChildren(block)
	lit2, ok := blockIt.Next()
	require.True(t, ok)
	assert.EqualValues(t, 2, lit2.IntegerValue())
	lit3, ok := blockIt.Next()
	require.True(t, ok)
	assert.EqualValues(t, 3, lit3.IntegerValue())
	assert.True(t, lit3.IsLastSibling())
	_, ok = blockIt.Next()
	assert.False(t, ok)
}

func TestPreorder(t *testing.T) {
	t.Parallel()

	identifiers := intern.NewPool()
	_, root := buildSample(t, identifiers)

	var tags []ast.Tag
	var depths []uint32
	it := ast.Preorder(root)
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		tags = append(tags, r.Node.Tag())
		depths = append(depths, r.Depth)
	}

	wantTags := []ast.Tag{
		ast.TagDefinition, ast.TagLitInteger,
		ast.TagDefinition, ast.TagBlock, ast.TagLitInteger, ast.TagLitInteger,
	}
	if diff := cmp.Diff(wantTags, tags); diff != "" {
		t.Errorf("preorder tags mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []uint32{0, 1, 0, 1, 2, 2}, depths)
}

func TestPostorder(t *testing.T) {
	t.Parallel()

	identifiers := intern.NewPool()
	_, root := buildSample(t, identifiers)

	var tags []ast.Tag
	it := ast.Postorder(root)
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		tags = append(tags, r.Node.Tag())
	}

	assert.Equal(t, []ast.Tag{
		ast.TagLitInteger, ast.TagDefinition,
		ast.TagLitInteger, ast.TagLitInteger, ast.TagBlock, ast.TagDefinition,
	}, tags)
}

func TestSemanticSlots(t *testing.T) {
	t.Parallel()

	identifiers := intern.NewPool()
	_, root := buildSample(t, identifiers)

	assert.EqualValues(t, 0, root.Type())
	root.SetType(42)
	assert.EqualValues(t, 42, root.Type())

	assert.EqualValues(t, 0, root.ScopeType())
	root.SetScopeType(7)
	assert.EqualValues(t, 7, root.ScopeType())
	assert.EqualValues(t, 2, root.DefinitionCount())
}

func TestSingleNodeTree(t *testing.T) {
	t.Parallel()

	b := ast.NewBuilder()
	pool := ast.NewPool()

	b.Push(ast.NoChildren, ast.TagFile, ast.FlagEmpty, 1, 0, 0)
	root := pool.Node(b.Complete(pool))

	assert.Equal(t, ast.TagFile, root.Tag())
	assert.False(t, root.HasChildren())

	it := ast.Preorder(root)
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestBuilderReuse(t *testing.T) {
	t.Parallel()

	b := ast.NewBuilder()
	pool := ast.NewPool()

	b.Push(ast.NoChildren, ast.TagWildcard, ast.FlagEmpty, 1)
	first := b.Complete(pool)

	lit := b.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, 2, ast.U64Attachment(9)...)
	b.Push(lit, ast.TagReturn, ast.FlagEmpty, 3)
	second := b.Complete(pool)

	assert.NotEqual(t, first, second)
	assert.Equal(t, ast.TagWildcard, pool.Node(first).Tag())

	ret := pool.Node(second)
	assert.Equal(t, ast.TagReturn, ret.Tag())
	assert.EqualValues(t, 9, ret.FirstChild().IntegerValue())
}

func TestDepthLimit(t *testing.T) {
	t.Parallel()

	b := ast.NewBuilder()
	pool := ast.NewPool()

	var fatal string
	b.Fatal = func(format string, args ...any) {
		if fatal == "" {
			fatal = format
		}
		panic("fatal")
	}

	// Nest blocks beyond the depth limit.
	child := b.Push(ast.NoChildren, ast.TagLitInteger, ast.FlagEmpty, 1, ast.U64Attachment(0)...)
	for i := 0; i < ast.MaxDepth+1; i++ {
		child = b.Push(child, ast.TagBlock, ast.FlagEmpty, 1, 0, 0)
	}
	b.Push(child, ast.TagFile, ast.FlagEmpty, 1, 0, 0)

	assert.Panics(t, func() { b.Complete(pool) })
	assert.Contains(t, fatal, "maximum parse tree depth")
}

func TestPrint(t *testing.T) {
	t.Parallel()

	identifiers := intern.NewPool()
	_, root := buildSample(t, identifiers)

	var out strings.Builder
	ast.Print(&out, root, identifiers)

	golden.Require(t, `
File
  Definition a
    LitInteger 1
  Definition b
    Block
      LitInteger 2
      LitInteger 3
`, out.String())
}
