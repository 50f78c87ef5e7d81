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

// Shape accessors for nodes whose child lists are driven by flags. Each
// returns handles in declaration order; absent children are zero Nodes.

// Definition is the decomposed child list of a Definition node.
type Definition struct {
	TypeExpr  Node // set when FlagDefinitionHasType
	ValueExpr Node // set when the definition carries a value
}

// DefinitionOf decomposes a Definition node.
func DefinitionOf(n Node) Definition {
	n.require(TagDefinition)

	var d Definition
	if !n.HasChildren() {
		return d
	}

	child := n.FirstChild()
	if n.Has(FlagDefinitionHasType) {
		d.TypeExpr = child
		if child.HasNextSibling() {
			d.ValueExpr = child.NextSibling()
		}
	} else {
		d.ValueExpr = child
	}
	return d
}

// If is the decomposed child list of an If node.
type If struct {
	Condition   Node
	Where       Node // set when FlagIfHasWhere
	Consequent  Node
	Alternative Node // set when FlagIfHasElse
}

// IfOf decomposes an If node.
func IfOf(n Node) If {
	n.require(TagIf)

	var i If
	i.Condition = n.FirstChild()

	next := i.Condition
	if n.Has(FlagIfHasWhere) {
		next = next.NextSibling()
		i.Where = next
	}

	next = next.NextSibling()
	i.Consequent = next

	if n.Has(FlagIfHasElse) {
		i.Alternative = next.NextSibling()
	}
	return i
}

// For is the decomposed child list of a For node.
type For struct {
	Condition Node
	Step      Node // set when FlagForHasStep
	Where     Node // set when FlagForHasWhere
	Body      Node
	Finally   Node // set when FlagForHasFinally
}

// ForOf decomposes a For node.
func ForOf(n Node) For {
	n.require(TagFor)

	var f For
	f.Condition = n.FirstChild()

	next := f.Condition
	if n.Has(FlagForHasStep) {
		next = next.NextSibling()
		f.Step = next
	}
	if n.Has(FlagForHasWhere) {
		next = next.NextSibling()
		f.Where = next
	}

	next = next.NextSibling()
	f.Body = next

	if n.Has(FlagForHasFinally) {
		f.Finally = next.NextSibling()
	}
	return f
}
