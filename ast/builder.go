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

package ast

import (
	"fmt"
	"math"

	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/source"
)

// Token is an opaque handle to a node in an unfinished builder. Tokens
// become invalid when the builder completes.
type Token uint32

// NoChildren is the Token passed as first-child for leaf nodes.
const NoChildren Token = math.MaxUint32

// Builder accumulates nodes in child-before-parent order into a scratch
// arena. [Builder.Complete] reorders the scratch into a preorder layout
// inside the destination [Pool].
//
// While a node sits in the scratch, its next-sibling slot temporarily
// holds the scratch index of its first child (or the NoChildren sentinel);
// finalization rewrites it into the real sibling offset.
type Builder struct {
	scratch []uint32

	// Fatal reports a resource-limit violation, such as exceeding
	// [MaxDepth]. It must not return. Defaults to panic; the parser routes
	// it into the diagnostic sink.
	Fatal func(format string, args ...any)
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		scratch: make([]uint32, 0, 1<<12),
		Fatal: func(format string, args ...any) {
			panic(fmt.Sprintf("ast: "+format, args...))
		},
	}
}

// Push appends a node whose children, if any, start at firstChild and
// returns the new node's token.
//
// attachment must be exactly AttachmentDwords(tag) words.
func (b *Builder) Push(firstChild Token, tag Tag, flags Flag, src source.ID, attachment ...uint32) Token {
	if uint32(len(attachment)) != AttachmentDwords(tag) {
		panic(fmt.Sprintf("ast: %s node pushed with %d attachment dwords, want %d",
			tag, len(attachment), AttachmentDwords(tag)))
	}

	dataDwords := headerDwords + uint32(len(attachment))
	internal := uint8(0)
	if firstChild == NoChildren {
		internal = flagNoChildren
	}

	tok := Token(len(b.scratch))
	b.scratch = append(b.scratch,
		uint32(tag)|uint32(flags)<<8|dataDwords<<16|uint32(internal)<<24,
		uint32(firstChild),
		0,
		uint32(src),
	)
	b.scratch = append(b.scratch, attachment...)
	return tok
}

// U64Attachment splits a 64-bit value into the two dwords of a LitInteger
// or LitFloat attachment.
func U64Attachment(v uint64) []uint32 {
	return []uint32{uint32(v), uint32(v >> 32)}
}

// IdentAttachment wraps an identifier handle as a one-dword attachment.
func IdentAttachment(id intern.ID) []uint32 {
	return []uint32{uint32(id)}
}

// scratchNode is a node view into the builder's scratch arena.
type scratchNode struct {
	b   *Builder
	idx uint32
}

func (n scratchNode) dataDwords() uint32 {
	return n.b.scratch[n.idx] >> 16 & 0xff
}

func (n scratchNode) internal() uint8 {
	return uint8(n.b.scratch[n.idx] >> 24)
}

func (n scratchNode) orInternal(flags uint8) {
	n.b.scratch[n.idx] |= uint32(flags) << 24
}

func (n scratchNode) sibling() uint32 {
	return n.b.scratch[n.idx+1]
}

func (n scratchNode) setSibling(v uint32) {
	n.b.scratch[n.idx+1] = v
}

func (n scratchNode) next() scratchNode {
	return scratchNode{b: n.b, idx: n.idx + n.dataDwords()}
}

// Complete finalizes the scratch into dst and returns the root's handle.
//
// Finalization is three linear passes:
//  1. assign first-/last-sibling flags from the temporary first-child
//     slots,
//  2. rewrite the sibling slots into a singly-linked preorder traversal,
//  3. copy nodes along that list into dst in preorder, assigning forward
//     sibling offsets.
//
// The builder is reset and may be reused for the next file.
func (b *Builder) Complete(dst *Pool) NodeID {
	if len(b.scratch) == 0 {
		panic("ast: Complete on empty builder")
	}

	b.setInternalFlags()
	root := b.buildTraversalList()
	id := b.copyToPreorder(root, dst)

	b.scratch = b.scratch[:0]
	return id
}

// setInternalFlags scans linearly; every node whose temporary slot names a
// first child marks that child as first-sibling and its own predecessor as
// last-sibling. The final node is both first and last sibling.
func (b *Builder) setInternalFlags() {
	end := uint32(len(b.scratch))

	var prev scratchNode
	hasPrev := false

	for curr := (scratchNode{b: b, idx: 0}); curr.idx < end; curr = curr.next() {
		if curr.sibling() != uint32(NoChildren) {
			if !hasPrev {
				panic("ast: parent node with no predecessor in scratch")
			}
			firstChild := scratchNode{b: b, idx: curr.sibling()}
			firstChild.orInternal(flagFirstSibling)
			prev.orInternal(flagLastSibling)
		}
		prev = curr
		hasPrev = true
	}

	prev.orInternal(flagFirstSibling | flagLastSibling)
}

// buildTraversalList rewrites the sibling slots into a linked list
// modelling a preorder traversal, returning the root (the last scratch
// node). Uses a depth stack bounded by MaxDepth.
func (b *Builder) buildTraversalList() scratchNode {
	end := uint32(len(b.scratch))

	depth := -1
	recursivelyLastChild := uint32(NoChildren)
	var prevSiblings [MaxDepth]uint32

	curr := scratchNode{b: b, idx: 0}
	for {
		// Connect this node to its predecessor sibling.
		if curr.internal()&flagFirstSibling == 0 {
			prev := scratchNode{b: b, idx: prevSiblings[depth]}
			prev.setSibling(curr.idx)
		}

		if curr.internal()&flagLastSibling == 0 {
			if curr.internal()&flagFirstSibling != 0 {
				if depth+1 >= MaxDepth {
					b.Fatal("maximum parse tree depth of %d exceeded", MaxDepth)
				}
				depth++
			}

			if curr.internal()&flagNoChildren == 0 {
				prevSiblings[depth] = recursivelyLastChild
			} else {
				prevSiblings[depth] = curr.idx
			}
		} else {
			if curr.internal()&flagFirstSibling == 0 {
				depth--
			}
			if curr.internal()&flagNoChildren != 0 {
				recursivelyLastChild = curr.idx
			}
		}

		next := curr.next()
		if next.idx >= end {
			break
		}
		curr = next
	}

	return curr
}

// copyToPreorder walks the traversal list from root and emits nodes
// contiguously into dst, rewriting sibling slots into forward offsets.
func (b *Builder) copyToPreorder(srcRoot scratchNode, dst *Pool) NodeID {
	endInd := uint32(len(b.scratch))

	var prevSiblings [MaxDepth]uint32
	depth := -1

	base := dst.alloc(endInd)
	dstCurr := base

	src := srcRoot
	for {
		dstNode := dstCurr
		dstCurr += src.dataDwords()
		copy(dst.words[dstNode:dstNode+src.dataDwords()], b.scratch[src.idx:src.idx+src.dataDwords()])

		currInd := dstNode - base

		if src.internal()&flagFirstSibling == 0 {
			// This node follows its previous sibling's whole subtree; pop
			// every finished chain and point it here.
			for {
				prevInd := prevSiblings[depth]
				depth--

				prev := Node{pool: dst, idx: base + prevInd}
				prev.setWord(1, currInd-prevInd)

				if prev.internalFlags()&flagLastSibling == 0 {
					break
				}
			}
		}

		if depth+1 >= MaxDepth {
			b.Fatal("maximum parse tree depth of %d exceeded", MaxDepth)
		}
		depth++
		prevSiblings[depth] = currInd

		if src.sibling() == uint32(NoChildren) {
			break
		}
		src = scratchNode{b: b, idx: src.sibling()}
	}

	// Whatever remains open chains to the end of the tree.
	for depth >= 0 {
		prevInd := prevSiblings[depth]
		depth--
		prev := Node{pool: dst, idx: base + prevInd}
		prev.setWord(1, endInd-prevInd)
	}

	return NodeID(base)
}
