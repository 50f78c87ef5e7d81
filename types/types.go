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

// Package types implements the deduplicating structural type pool.
//
// Every structural type is stored exactly once, keyed by its tag and
// payload bytes; [ID]s are therefore directly comparable. Composite types
// are nominal: each one is its own entry, built up through the
// open/closed lifecycle ([Pool.CreateOpen], [Pool.AddOpenMember],
// [Pool.Close]).
//
// The high bit of an ID is not part of the type's identity: it carries the
// assignability of the expression the ID was observed on (whether the
// expression denotes a storage location). Strip it before comparing.
package types

// ID is an opaque handle to a type, with the assignability bit in bit 31.
// The zero value is invalid.
type ID uint32

const (
	// Invalid is the reserved nil handle.
	Invalid ID = 0

	// Checking marks a node currently being typechecked. Observing it
	// means the program has a cyclic type dependency.
	Checking ID = 0x7fffffff

	// NoType marks nodes that deliberately have no type of their own, such
	// as the identifier on the right of a member access.
	NoType ID = 0x7ffffffe

	assignableBit ID = 1 << 31

	// maxIndex bounds the pool so indexes never collide with the
	// sentinels above.
	maxIndex = uint32(NoType) - 1
)

// Nil reports whether this is the invalid handle (ignoring assignability).
func (id ID) Nil() bool {
	return id&^assignableBit == Invalid
}

// Assignable reports whether the expression this ID was observed on
// denotes a storage location.
func (id ID) Assignable() bool {
	return id&assignableBit != 0
}

// WithAssignability returns id with the assignability bit set or cleared.
func (id ID) WithAssignability(assignable bool) ID {
	if assignable {
		return id | assignableBit
	}
	return id &^ assignableBit
}

// Strip returns id with the assignability bit cleared. Use before
// comparing IDs for type identity.
func (id ID) Strip() ID {
	return id &^ assignableBit
}

// index returns the pool index of id.
func (id ID) index() uint32 {
	return uint32(id &^ assignableBit)
}

// Tag discriminates the stored type variants.
type Tag uint8

const (
	TagInvalid Tag = iota
	TagVoid
	TagType
	TagDefinition
	TagCompInteger
	TagCompFloat
	TagCompString
	TagInteger
	TagFloat
	TagBoolean
	TagSlice
	TagPtr
	TagAlias
	TagArray
	TagFunc
	TagBuiltin
	TagComposite
	TagCompositeLiteral
	TagArrayLiteral
	TagCallFrame
	TagTypeBuilder
	TagTypeInfo
	TagVariadic
)

var tagNames = [...]string{
	TagInvalid:          "[invalid]",
	TagVoid:             "Void",
	TagType:             "Type",
	TagDefinition:       "Definition",
	TagCompInteger:      "CompInteger",
	TagCompFloat:        "CompFloat",
	TagCompString:       "CompString",
	TagInteger:          "Integer",
	TagFloat:            "Float",
	TagBoolean:          "Boolean",
	TagSlice:            "Slice",
	TagPtr:              "Ptr",
	TagAlias:            "Alias",
	TagArray:            "Array",
	TagFunc:             "Func",
	TagBuiltin:          "Builtin",
	TagComposite:        "Composite",
	TagCompositeLiteral: "CompositeLiteral",
	TagArrayLiteral:     "ArrayLiteral",
	TagCallFrame:        "CallFrame",
	TagTypeBuilder:      "TypeBuilder",
	TagTypeInfo:         "TypeInfo",
	TagVariadic:         "Variadic",
}

// String returns the tag's debug name.
func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return tagNames[TagInvalid]
}
