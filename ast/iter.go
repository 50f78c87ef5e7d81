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

// Iterators are plain structs holding a few indices and a bounded depth
// stack; nothing here allocates.

// DirectChildIterator yields the direct children of one node, in order.
type DirectChildIterator struct {
	curr Node
	ok   bool
}

// DirectChildren returns an iterator over node's direct children.
func DirectChildren(node Node) DirectChildIterator {
	if !node.HasChildren() {
		return DirectChildIterator{}
	}
	return DirectChildIterator{curr: node.FirstChild(), ok: true}
}

// Next returns the next child, or false when exhausted.
func (it *DirectChildIterator) Next() (Node, bool) {
	if !it.ok {
		return Node{}, false
	}
	curr := it.curr
	if curr.HasNextSibling() {
		it.curr = curr.NextSibling()
	} else {
		it.ok = false
	}
	return curr, true
}

// PreorderResult pairs a visited node with its depth below the iteration
// root (direct children have depth 0).
type PreorderResult struct {
	Node  Node
	Depth uint32
}

// PreorderIterator yields every node beneath a root in preorder. It
// exploits the finalized layout: the next node in preorder is always the
// adjacent node in the arena, so iteration is a single linear walk plus a
// depth stack for sibling accounting.
type PreorderIterator struct {
	curr  Node
	ok    bool
	depth uint32
	top   int
	prev  [MaxDepth]uint32
}

// Preorder returns an iterator over all of node's descendants.
func Preorder(node Node) *PreorderIterator {
	it := &PreorderIterator{top: -1}
	if node.HasChildren() {
		it.curr = node.FirstChild()
		it.ok = true
	}
	return it
}

// Next returns the next node in preorder, or false when exhausted.
func (it *PreorderIterator) Next() (PreorderResult, bool) {
	if !it.ok {
		return PreorderResult{}, false
	}

	result := PreorderResult{Node: it.curr, Depth: it.depth}
	curr := it.curr

	it.curr = Node{pool: curr.pool, idx: curr.idx + uint32(curr.DataDwords())}

	switch {
	case curr.HasChildren():
		if curr.HasNextSibling() {
			it.top++
			it.prev[it.top] = it.depth
		}
		it.depth++
	case curr.IsLastSibling():
		if it.top == -1 {
			it.ok = false
		} else {
			it.depth = it.prev[it.top]
			it.top--
		}
	}

	return result, true
}

// PostorderIterator yields every node beneath a root in postorder
// (children before parents).
type PostorderIterator struct {
	base    Node
	depth   int
	offsets [MaxDepth]uint32
}

// Postorder returns an iterator over all of node's descendants, children
// first.
func Postorder(node Node) *PostorderIterator {
	it := &PostorderIterator{base: node, depth: -1}
	for node.HasChildren() {
		node = node.FirstChild()
		it.depth++
		it.offsets[it.depth] = node.idx - it.base.idx
	}
	return it
}

// Next returns the next node in postorder, or false when exhausted.
func (it *PostorderIterator) Next() (PreorderResult, bool) {
	if it.depth < 0 {
		return PreorderResult{}, false
	}

	ret := Node{pool: it.base.pool, idx: it.base.idx + it.offsets[it.depth]}
	retDepth := uint32(it.depth)

	curr := ret
	if curr.HasNextSibling() {
		curr = curr.NextSibling()
		it.offsets[it.depth] = curr.idx - it.base.idx
		for curr.HasChildren() {
			curr = curr.FirstChild()
			it.depth++
			it.offsets[it.depth] = curr.idx - it.base.idx
		}
	} else {
		it.depth--
	}

	return PreorderResult{Node: ret, Depth: retDepth}, true
}
