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

package parser_test

import (
	"testing"

	"github.com/evl-lang/evl/internal/golden"
)

func TestParseForLoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func () = for c do { x }")
	golden.Require(t, `
File
  Definition f
    Func [0x10]
      ParameterList
      For
        Identifier c
        Block
          Identifier x
`, h.render(root))
}

func TestParseForWithStepAndFinally(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func () = for c, s do b finally e")
	golden.Require(t, `
File
  Definition f
    Func [0x10]
      ParameterList
      For [0x3]
        Identifier c
        Identifier s
        Identifier b
        Identifier e
`, h.render(root))
}

func TestParseForEach(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func () = for e <- xs do b")
	golden.Require(t, `
File
  Definition f
    Func [0x10]
      ParameterList
      ForEach
        Definition e
        Identifier xs
        Identifier b
`, h.render(root))
}

func TestParseForEachWithIndex(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func () = for e, i <- xs do b")
	golden.Require(t, `
File
  Definition f
    Func [0x10]
      ParameterList
      ForEach [0x1]
        Definition e
        Definition i
        Identifier xs
        Identifier b
`, h.render(root))
}

func TestParseSwitch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = switch v case 1 -> a case 2 -> b")
	golden.Require(t, `
File
  Definition x
    Switch
      Identifier v
      Case
        LitInteger 1
        Identifier a
      Case
        LitInteger 2
        Identifier b
`, h.render(root))
}

func TestParseSwitchRequiresCase(t *testing.T) {
	t.Parallel()

	parseError(t, "let x = switch v", "expected at least one 'case'")
}

func TestParseCatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = risky() catch fallback")
	golden.Require(t, `
File
  Definition x
    Catch
      Call
        Identifier risky
      Identifier fallback
`, h.render(root))
}

func TestParseCatchWithInboundDefinition(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = risky() catch err -> fallback")
	golden.Require(t, `
File
  Definition x
    Catch [0x1]
      Call
        Identifier risky
      Definition err
      Identifier fallback
`, h.render(root))
}

func TestParseIfWithWhere(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = if c where t = u then a else b")
	golden.Require(t, `
File
  Definition x
    If [0x21]
      Identifier c
      Where
        Definition t
          Identifier u
      Identifier a
      Identifier b
`, h.render(root))
}

func TestParseTrait(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let T = trait (t : type) = { }")
	golden.Require(t, `
File
  Definition T
    Trait
      Definition t [0x20]
        Identifier type
      Block
`, h.render(root))
}

func TestParseImpl(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "impl T = { }")
	golden.Require(t, `
File
  Impl
    Identifier T
    Block
`, h.render(root))
}

func TestParseReturnLeaveYield(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func () = { return 1 }\nlet g = func () = { leave }\nlet h = func () = { yield 2 }")
	golden.Require(t, `
File
  Definition f
    Func [0x10]
      ParameterList
      Block
        Return
          LitInteger 1
  Definition g
    Func [0x10]
      ParameterList
      Block
        Leave
  Definition h
    Func [0x10]
      ParameterList
      Block
        Yield
          LitInteger 2
`, h.render(root))
}

func TestParseExpectsEnsures(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let f = func (x : t) -> t expects p, q ensures r = x")
	golden.Require(t, `
File
  Definition f
    Func [0x1b]
      ParameterList
        Definition x [0x20]
          Identifier t
      Identifier t
      Expects
        Identifier p
        Identifier q
      Ensures
        Identifier r
      Identifier x
`, h.render(root))
}

func TestParseArrayIndexAndDeref(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = xs[3]\nlet y = p.*")
	golden.Require(t, `
File
  Definition x
    OpArrayIndex
      Identifier xs
      LitInteger 3
  Definition y
    UOpDeref
      Identifier p
`, h.render(root))
}

func TestParseMemberChain(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let x = a.b.c")
	golden.Require(t, `
File
  Definition x
    OpMember
      OpMember
        Identifier a
        Identifier b
      Identifier c
`, h.render(root))
}

func TestParseInitializers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	root := h.parse(t, "let s = .{ 1, 2 }\nlet a = .[ 3, 4 ]")
	golden.Require(t, `
File
  Definition s
    CompositeInitializer
      LitInteger 1
      LitInteger 2
  Definition a
    ArrayInitializer
      LitInteger 3
      LitInteger 4
`, h.render(root))
}
