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

// Package ast stores syntax trees in a compact preorder arena.
//
// Nodes live contiguously in a single dword (32-bit word) arena. Each node
// is a four-word header followed by zero or more tag-specific attachment
// words:
//
//	word 0: tag | flags<<8 | dataDwords<<16 | internalFlags<<24
//	word 1: next-sibling offset, in dwords, relative to the node
//	word 2: semantic type slot (written by the typechecker)
//	word 3: source position
//
// After finalization the layout is preorder: a node's first child
// immediately follows it (at offset dataDwords) and siblings are chained
// through relative offsets. The only mutations allowed on a finalized node
// are its semantic slots: the type slot and the scope and signature
// attachments (see attach.go).
package ast

import (
	"fmt"

	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
)

// MaxDepth is the maximum tree depth of any single file's AST.
const MaxDepth = 128

// Tag discriminates AST node variants.
type Tag uint8

const (
	TagInvalid Tag = iota
	TagBuiltin
	TagFile
	TagCompositeInitializer
	TagArrayInitializer
	TagWildcard
	TagWhere
	TagExpects
	TagEnsures
	TagDefinition
	TagBlock
	TagIf
	TagFor
	TagForEach
	TagSwitch
	TagCase
	TagFunc
	TagTrait
	TagImpl
	TagCatch
	TagIdentifier
	TagLitInteger
	TagLitFloat
	TagLitChar
	TagLitString
	TagReturn
	TagLeave
	TagYield
	TagParameterList
	TagCall
	TagUOpTypeTailArray
	TagUOpTypeSlice
	TagUOpTypeMultiPtr
	TagUOpTypeOptMultiPtr
	TagUOpEval
	TagUOpTry
	TagUOpDefer
	TagUOpDistinct
	TagUOpAddr
	TagUOpDeref
	TagUOpBitNot
	TagUOpLogNot
	TagUOpTypeOptPtr
	TagUOpTypeVar
	TagUOpImpliedMember
	TagUOpTypePtr
	TagUOpNegate
	TagUOpPos
	TagOpAdd
	TagOpSub
	TagOpMul
	TagOpDiv
	TagOpAddTC
	TagOpSubTC
	TagOpMulTC
	TagOpMod
	TagOpBitAnd
	TagOpBitOr
	TagOpBitXor
	TagOpShiftL
	TagOpShiftR
	TagOpLogAnd
	TagOpLogOr
	TagOpMember
	TagOpCmpLT
	TagOpCmpGT
	TagOpCmpLE
	TagOpCmpGE
	TagOpCmpNE
	TagOpCmpEQ
	TagOpSet
	TagOpSetAdd
	TagOpSetSub
	TagOpSetMul
	TagOpSetDiv
	TagOpSetAddTC
	TagOpSetSubTC
	TagOpSetMulTC
	TagOpSetMod
	TagOpSetBitAnd
	TagOpSetBitOr
	TagOpSetBitXor
	TagOpSetShiftL
	TagOpSetShiftR
	TagOpTypeArray
	TagOpArrayIndex

	numTags
)

var tagNames = [...]string{
	TagInvalid:              "[unknown]",
	TagBuiltin:              "Builtin",
	TagFile:                 "File",
	TagCompositeInitializer: "CompositeInitializer",
	TagArrayInitializer:     "ArrayInitializer",
	TagWildcard:             "Wildcard",
	TagWhere:                "Where",
	TagExpects:              "Expects",
	TagEnsures:              "Ensures",
	TagDefinition:           "Definition",
	TagBlock:                "Block",
	TagIf:                   "If",
	TagFor:                  "For",
	TagForEach:              "ForEach",
	TagSwitch:               "Switch",
	TagCase:                 "Case",
	TagFunc:                 "Func",
	TagTrait:                "Trait",
	TagImpl:                 "Impl",
	TagCatch:                "Catch",
	TagIdentifier:           "Identifier",
	TagLitInteger:           "LitInteger",
	TagLitFloat:             "LitFloat",
	TagLitChar:              "LitChar",
	TagLitString:            "LitString",
	TagReturn:               "Return",
	TagLeave:                "Leave",
	TagYield:                "Yield",
	TagParameterList:        "ParameterList",
	TagCall:                 "Call",
	TagUOpTypeTailArray:     "UOpTypeTailArray",
	TagUOpTypeSlice:         "UOpTypeSlice",
	TagUOpTypeMultiPtr:      "UOpTypeMultiPtr",
	TagUOpTypeOptMultiPtr:   "UOpTypeOptMultiPtr",
	TagUOpEval:              "UOpEval",
	TagUOpTry:               "UOpTry",
	TagUOpDefer:             "UOpDefer",
	TagUOpDistinct:          "UOpDistinct",
	TagUOpAddr:              "UOpAddr",
	TagUOpDeref:             "UOpDeref",
	TagUOpBitNot:            "UOpBitNot",
	TagUOpLogNot:            "UOpLogNot",
	TagUOpTypeOptPtr:        "UOpTypeOptPtr",
	TagUOpTypeVar:           "UOpTypeVar",
	TagUOpImpliedMember:     "UOpImpliedMember",
	TagUOpTypePtr:           "UOpTypePtr",
	TagUOpNegate:            "UOpNegate",
	TagUOpPos:               "UOpPos",
	TagOpAdd:                "OpAdd",
	TagOpSub:                "OpSub",
	TagOpMul:                "OpMul",
	TagOpDiv:                "OpDiv",
	TagOpAddTC:              "OpAddTC",
	TagOpSubTC:              "OpSubTC",
	TagOpMulTC:              "OpMulTC",
	TagOpMod:                "OpMod",
	TagOpBitAnd:             "OpBitAnd",
	TagOpBitOr:              "OpBitOr",
	TagOpBitXor:             "OpBitXor",
	TagOpShiftL:             "OpShiftL",
	TagOpShiftR:             "OpShiftR",
	TagOpLogAnd:             "OpLogAnd",
	TagOpLogOr:              "OpLogOr",
	TagOpMember:             "OpMember",
	TagOpCmpLT:              "OpCmpLT",
	TagOpCmpGT:              "OpCmpGT",
	TagOpCmpLE:              "OpCmpLE",
	TagOpCmpGE:              "OpCmpGE",
	TagOpCmpNE:              "OpCmpNE",
	TagOpCmpEQ:              "OpCmpEQ",
	TagOpSet:                "OpSet",
	TagOpSetAdd:             "OpSetAdd",
	TagOpSetSub:             "OpSetSub",
	TagOpSetMul:             "OpSetMul",
	TagOpSetDiv:             "OpSetDiv",
	TagOpSetAddTC:           "OpSetAddTC",
	TagOpSetSubTC:           "OpSetSubTC",
	TagOpSetMulTC:           "OpSetMulTC",
	TagOpSetMod:             "OpSetMod",
	TagOpSetBitAnd:          "OpSetBitAnd",
	TagOpSetBitOr:           "OpSetBitOr",
	TagOpSetBitXor:          "OpSetBitXor",
	TagOpSetShiftL:          "OpSetShiftL",
	TagOpSetShiftR:          "OpSetShiftR",
	TagOpTypeArray:          "OpTypeArray",
	TagOpArrayIndex:         "OpArrayIndex",
}

// String returns the tag's debug name.
func (t Tag) String() string {
	if int(t) < len(tagNames) && tagNames[t] != "" {
		return tagNames[t]
	}
	return tagNames[TagInvalid]
}

// Flag holds tag-specific node flags. For Builtin nodes the whole flag
// byte carries the builtin ordinal instead.
type Flag uint8

const (
	FlagEmpty Flag = 0

	FlagDefinitionIsPub   Flag = 0x01
	FlagDefinitionIsMut   Flag = 0x02
	FlagDefinitionGlobal  Flag = 0x04
	FlagDefinitionIsAuto  Flag = 0x08
	FlagDefinitionIsUse   Flag = 0x10
	FlagDefinitionHasType Flag = 0x20

	FlagIfHasWhere Flag = 0x20
	FlagIfHasElse  Flag = 0x01

	FlagForHasWhere   Flag = 0x20
	FlagForHasStep    Flag = 0x01
	FlagForHasFinally Flag = 0x02

	FlagForEachHasWhere   Flag = 0x20
	FlagForEachHasIndex   Flag = 0x01
	FlagForEachHasFinally Flag = 0x02

	FlagSwitchHasWhere Flag = 0x20

	FlagFuncHasExpects    Flag = 0x01
	FlagFuncHasEnsures    Flag = 0x02
	FlagFuncIsProc        Flag = 0x04
	FlagFuncHasReturnType Flag = 0x08
	FlagFuncHasBody       Flag = 0x10

	FlagTraitHasExpects Flag = 0x01
	FlagImplHasExpects  Flag = 0x01

	FlagCatchHasDefinition Flag = 0x01

	FlagTypeIsMut Flag = 0x02
)

// Internal flag bits tracking sibling-chain structure.
const (
	flagLastSibling  uint8 = 0x01
	flagFirstSibling uint8 = 0x02
	flagNoChildren   uint8 = 0x04
)

// headerDwords is the node header size, in dwords.
const headerDwords = 4

// NodeID is a stable handle to a finalized node. The zero value is
// invalid.
type NodeID uint32

// Nil reports whether this is the invalid handle.
func (id NodeID) Nil() bool {
	return id == 0
}

// Pool owns finalized ASTs for every parsed file.
//
// The pool is a single grow-only dword arena; NodeIDs are dword indices
// into it. Index 0 is reserved so the zero NodeID stays invalid.
type Pool struct {
	words []uint32
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{words: make([]uint32, 1, 1<<12)}
}

// alloc reserves dwords words and returns the index of the first.
func (p *Pool) alloc(dwords uint32) uint32 {
	idx := uint32(len(p.words))
	p.words = append(p.words, make([]uint32, dwords)...)
	return idx
}

// Node returns the node for a handle previously produced by this pool.
func (p *Pool) Node(id NodeID) Node {
	if id.Nil() || int(id) >= len(p.words) {
		panic(fmt.Sprintf("ast: invalid node handle %d", uint32(id)))
	}
	return Node{pool: p, idx: uint32(id)}
}

// Node is a cheap handle to one finalized node.
type Node struct {
	pool *Pool
	idx  uint32
}

// Nil reports whether this handle is the zero Node.
func (n Node) Nil() bool {
	return n.pool == nil
}

// ID returns the node's stable handle.
func (n Node) ID() NodeID {
	return NodeID(n.idx)
}

func (n Node) word(i uint32) uint32 {
	return n.pool.words[n.idx+i]
}

func (n Node) setWord(i, v uint32) {
	n.pool.words[n.idx+i] = v
}

// Tag returns the node's variant tag.
func (n Node) Tag() Tag {
	return Tag(n.word(0))
}

// Flags returns the node's tag-specific flags.
func (n Node) Flags() Flag {
	return Flag(n.word(0) >> 8)
}

// Has reports whether flag is set.
func (n Node) Has(flag Flag) bool {
	return n.Flags()&flag != 0
}

// DataDwords returns the node's total length, header included, in dwords.
func (n Node) DataDwords() uint8 {
	return uint8(n.word(0) >> 16)
}

func (n Node) internalFlags() uint8 {
	return uint8(n.word(0) >> 24)
}

// HasChildren reports whether the node has at least one child.
func (n Node) HasChildren() bool {
	return n.internalFlags()&flagNoChildren == 0
}

// HasNextSibling reports whether another sibling follows this node.
func (n Node) HasNextSibling() bool {
	return n.internalFlags()&flagLastSibling == 0
}

// IsFirstSibling reports whether this node starts its sibling chain.
func (n Node) IsFirstSibling() bool {
	return n.internalFlags()&flagFirstSibling != 0
}

// IsLastSibling reports whether this node terminates its sibling chain.
func (n Node) IsLastSibling() bool {
	return n.internalFlags()&flagLastSibling != 0
}

// NextSiblingOffset returns the raw sibling offset, in dwords.
func (n Node) NextSiblingOffset() uint32 {
	return n.word(1)
}

// FirstChild returns the node's first child, which immediately follows it.
// The node must have children.
func (n Node) FirstChild() Node {
	if !n.HasChildren() {
		panic(fmt.Sprintf("ast: %s node has no children", n.Tag()))
	}
	return Node{pool: n.pool, idx: n.idx + uint32(n.DataDwords())}
}

// NextSibling returns the node's next sibling. The node must not be the
// last of its chain.
func (n Node) NextSibling() Node {
	if !n.HasNextSibling() {
		panic(fmt.Sprintf("ast: %s node has no next sibling", n.Tag()))
	}
	return Node{pool: n.pool, idx: n.idx + n.word(1)}
}

// Type returns the semantic type slot, written by the typechecker.
func (n Node) Type() types.ID {
	return types.ID(n.word(2))
}

// SetType writes the semantic type slot. Apart from the scope and
// signature attachment setters, this is the only permitted mutation of a
// finalized node.
func (n Node) SetType(id types.ID) {
	n.setWord(2, uint32(id))
}

// SourceID returns the node's source position.
func (n Node) SourceID() source.ID {
	return source.ID(n.word(3))
}
