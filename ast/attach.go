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
	"github.com/evl-lang/evl/types"
)

// Attachment sizes, in dwords, keyed by tag. Tags not listed carry no
// attachment.
var attachmentDwords = map[Tag]uint32{
	TagDefinition: 1,
	TagIdentifier: 1,
	TagLitString:  1,
	TagLitInteger: 2,
	TagLitFloat:   2,
	TagLitChar:    1,
	TagBlock:      2,
	TagFile:       2,
	TagFunc:       2,
}

// AttachmentDwords returns the fixed attachment size for tag, in dwords.
func AttachmentDwords(tag Tag) uint32 {
	return attachmentDwords[tag]
}

func (n Node) require(tag Tag) {
	if n.Tag() != tag {
		panic(fmt.Sprintf("ast: %s attachment accessed on %s node", tag, n.Tag()))
	}
}

// DefinitionName returns the defined identifier of a Definition node.
func (n Node) DefinitionName() intern.ID {
	n.require(TagDefinition)
	return intern.ID(n.word(headerDwords))
}

// IdentifierID returns the identifier of an Identifier node.
func (n Node) IdentifierID() intern.ID {
	n.require(TagIdentifier)
	return intern.ID(n.word(headerDwords))
}

// StringID returns the interned contents of a LitString node.
func (n Node) StringID() intern.ID {
	n.require(TagLitString)
	return intern.ID(n.word(headerDwords))
}

// IntegerValue returns the value of a LitInteger node.
func (n Node) IntegerValue() uint64 {
	n.require(TagLitInteger)
	return uint64(n.word(headerDwords)) | uint64(n.word(headerDwords+1))<<32
}

// FloatValue returns the value of a LitFloat node.
func (n Node) FloatValue() float64 {
	n.require(TagLitFloat)
	bits := uint64(n.word(headerDwords)) | uint64(n.word(headerDwords+1))<<32
	return math.Float64frombits(bits)
}

// CharValue returns the codepoint of a LitChar node.
func (n Node) CharValue() uint32 {
	n.require(TagLitChar)
	return n.word(headerDwords)
}

// BuiltinOrdinal returns the builtin selector of a Builtin node, which the
// parser stores in the flag byte.
func (n Node) BuiltinOrdinal() uint8 {
	n.require(TagBuiltin)
	return uint8(n.Flags())
}

func (n Node) requireScoped() {
	if tag := n.Tag(); tag != TagBlock && tag != TagFile {
		panic(fmt.Sprintf("ast: scope attachment accessed on %s node", tag))
	}
}

// DefinitionCount returns the number of top-level definitions of a Block
// or File node.
func (n Node) DefinitionCount() uint32 {
	n.requireScoped()
	return n.word(headerDwords)
}

// ScopeType returns the composite type backing a Block or File scope,
// written by the typechecker. Invalid until the node has been checked.
func (n Node) ScopeType() types.ID {
	n.requireScoped()
	return types.ID(n.word(headerDwords + 1))
}

// SetScopeType writes the scope slot of a Block or File node. Like the
// type slot, this is semantic information and may be set after
// finalization.
func (n Node) SetScopeType(id types.ID) {
	n.requireScoped()
	n.setWord(headerDwords+1, uint32(id))
}

// FuncSignatureType returns the signature slot of a Func node.
func (n Node) FuncSignatureType() types.ID {
	n.require(TagFunc)
	return types.ID(n.word(headerDwords))
}

// SetFuncSignatureType writes the signature slot of a Func node.
func (n Node) SetFuncSignatureType(id types.ID) {
	n.require(TagFunc)
	n.setWord(headerDwords, uint32(id))
}

// FuncReturnType returns the return-type slot of a Func node.
func (n Node) FuncReturnType() types.ID {
	n.require(TagFunc)
	return types.ID(n.word(headerDwords + 1))
}

// SetFuncReturnType writes the return-type slot of a Func node.
func (n Node) SetFuncReturnType(id types.ID) {
	n.require(TagFunc)
	n.setWord(headerDwords+1, uint32(id))
}
