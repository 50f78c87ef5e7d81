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

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/source"
)

// entry is one stored type.
type entry struct {
	tag Tag

	// payload holds the structural bytes for primitive (non-composite)
	// entries.
	payload []byte

	// composite holds member data for Composite entries; nil otherwise.
	composite *composite
}

// dedupKey buckets structurally equal candidates. Collisions inside a
// bucket are resolved by byte comparison.
type dedupKey struct {
	tag  Tag
	hash uint64
}

// Pool is the deduplicating structural type store.
type Pool struct {
	entries []entry
	dedup   map[dedupKey][]ID
}

// NewPool returns a pool with handle 0 reserved as invalid.
func NewPool() *Pool {
	return &Pool{
		entries: make([]entry, 1, 64),
		dedup:   make(map[dedupKey][]ID),
	}
}

func (p *Pool) entryOf(id ID) *entry {
	idx := id.index()
	if idx == 0 || idx >= uint32(len(p.entries)) {
		panic(fmt.Sprintf("types: invalid type handle %#x", uint32(id)))
	}
	return &p.entries[idx]
}

func (p *Pool) append(e entry) ID {
	idx := uint32(len(p.entries))
	if idx > maxIndex {
		panic("types: type pool exhausted")
	}
	p.entries = append(p.entries, e)
	return ID(idx)
}

// Primitive returns the unique ID for the given tag and structural payload
// bytes, appending a new entry on first sight.
//
// Primitive here means "not composite": every tag except TagComposite
// deduplicates through this path, apart from distinct aliases, which
// [Pool.NewAlias] appends without deduplication.
func (p *Pool) Primitive(tag Tag, payload []byte) ID {
	key := dedupKey{tag: tag, hash: xxhash.Sum64(payload)}

	for _, id := range p.dedup[key] {
		e := p.entryOf(id)
		if e.tag == tag && string(e.payload) == string(payload) {
			return id
		}
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	id := p.append(entry{tag: tag, payload: stored})
	p.dedup[key] = append(p.dedup[key], id)
	return id
}

// RawTag returns the stored tag of id without stripping aliases.
func (p *Pool) RawTag(id ID) Tag {
	return p.entryOf(id).tag
}

// Tag returns the tag of id with all aliases stripped.
func (p *Pool) Tag(id ID) Tag {
	return p.entryOf(p.Dealias(id)).tag
}

// Dealias strips every Alias wrapper, distinct or not. Structure queries
// see through all aliases; only implicit convertibility distinguishes
// distinct ones.
func (p *Pool) Dealias(id ID) ID {
	assignable := id.Assignable()
	id = id.Strip()
	for p.entryOf(id).tag == TagAlias {
		id = p.asAlias(id).Aliased.Strip()
	}
	return id.WithAssignability(assignable)
}

// DealiasTransparent strips only non-distinct aliases.
func (p *Pool) DealiasTransparent(id ID) ID {
	assignable := id.Assignable()
	id = id.Strip()
	for p.entryOf(id).tag == TagAlias {
		alias := p.asAlias(id)
		if alias.Distinct {
			break
		}
		id = alias.Aliased.Strip()
	}
	return id.WithAssignability(assignable)
}

// Integer describes an Integer type.
type Integer struct {
	Bits   uint16
	Signed bool
}

// Float describes a Float type.
type Float struct {
	Bits uint16
}

// Reference describes a Slice, Ptr or Variadic type. The referenced ID
// embeds the element's assignability (its mutability through the
// reference).
type Reference struct {
	Referenced ID
	IsMulti    bool
	IsOpt      bool
}

// Array describes a fixed-count array type.
type Array struct {
	Element ID
	Count   uint64
}

// Alias describes a named or distinct wrapper around another type.
type Alias struct {
	Aliased  ID
	Distinct bool
	Source   source.ID
	Name     intern.ID
}

// Func describes a function or procedure type. The signature is the
// composite holding the parameters.
type Func struct {
	Signature ID
	Return    ID
	ParamCount uint16
	IsProc    bool
}

// NewInteger interns an Integer type.
func (p *Pool) NewInteger(bits uint16, signed bool) ID {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload, bits)
	if signed {
		payload[2] = 1
	}
	return p.Primitive(TagInteger, payload)
}

// NewFloat interns a Float type.
func (p *Pool) NewFloat(bits uint16) ID {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload, bits)
	return p.Primitive(TagFloat, payload)
}

func referencePayload(ref Reference) []byte {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload, uint32(ref.Referenced))
	if ref.IsMulti {
		payload[4] = 1
	}
	if ref.IsOpt {
		payload[5] = 1
	}
	return payload
}

// NewSlice interns a Slice type.
func (p *Pool) NewSlice(ref Reference) ID {
	return p.Primitive(TagSlice, referencePayload(ref))
}

// NewPtr interns a Ptr type.
func (p *Pool) NewPtr(ref Reference) ID {
	return p.Primitive(TagPtr, referencePayload(ref))
}

// NewVariadic interns a Variadic type.
func (p *Pool) NewVariadic(ref Reference) ID {
	return p.Primitive(TagVariadic, referencePayload(ref))
}

// NewArray interns an Array type.
func (p *Pool) NewArray(arr Array) ID {
	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload, uint32(arr.Element))
	binary.LittleEndian.PutUint64(payload[4:], arr.Count)
	return p.Primitive(TagArray, payload)
}

// NewFunc interns a Func type.
func (p *Pool) NewFunc(fn Func) ID {
	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload, uint32(fn.Signature))
	binary.LittleEndian.PutUint32(payload[4:], uint32(fn.Return))
	binary.LittleEndian.PutUint16(payload[8:], fn.ParamCount)
	if fn.IsProc {
		payload[10] = 1
	}
	return p.Primitive(TagFunc, payload)
}

// NewAlias creates an opaque wrapper around inner.
//
// Non-distinct aliases with identical target, source and name
// deduplicate. Distinct aliases are nominally unique: every call creates
// a fresh entry, so a distinct alias never compares equal to its target
// or to any other distinct alias.
func (p *Pool) NewAlias(inner ID, distinct bool, src source.ID, name intern.ID) ID {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint32(payload, uint32(inner))
	if distinct {
		payload[4] = 1
	}
	binary.LittleEndian.PutUint32(payload[8:], uint32(src))
	binary.LittleEndian.PutUint32(payload[12:], uint32(name))

	if distinct {
		return p.append(entry{tag: TagAlias, payload: payload})
	}
	return p.Primitive(TagAlias, payload)
}

// AsInteger decodes an Integer entry. id must have that tag after
// dealiasing.
func (p *Pool) AsInteger(id ID) Integer {
	e := p.entryOf(p.Dealias(id))
	p.requireTag(e, TagInteger)
	return Integer{
		Bits:   binary.LittleEndian.Uint16(e.payload),
		Signed: e.payload[2] != 0,
	}
}

// AsFloat decodes a Float entry.
func (p *Pool) AsFloat(id ID) Float {
	e := p.entryOf(p.Dealias(id))
	p.requireTag(e, TagFloat)
	return Float{Bits: binary.LittleEndian.Uint16(e.payload)}
}

// AsReference decodes a Slice, Ptr or Variadic entry.
func (p *Pool) AsReference(id ID) Reference {
	e := p.entryOf(p.Dealias(id))
	if e.tag != TagSlice && e.tag != TagPtr && e.tag != TagVariadic {
		panic(fmt.Sprintf("types: %s entry read as reference", e.tag))
	}
	return Reference{
		Referenced: ID(binary.LittleEndian.Uint32(e.payload)),
		IsMulti:    e.payload[4] != 0,
		IsOpt:      e.payload[5] != 0,
	}
}

// AsArray decodes an Array entry.
func (p *Pool) AsArray(id ID) Array {
	e := p.entryOf(p.Dealias(id))
	p.requireTag(e, TagArray)
	return Array{
		Element: ID(binary.LittleEndian.Uint32(e.payload)),
		Count:   binary.LittleEndian.Uint64(e.payload[4:]),
	}
}

// AsFunc decodes a Func entry.
func (p *Pool) AsFunc(id ID) Func {
	e := p.entryOf(p.Dealias(id))
	p.requireTag(e, TagFunc)
	return Func{
		Signature:  ID(binary.LittleEndian.Uint32(e.payload)),
		Return:     ID(binary.LittleEndian.Uint32(e.payload[4:])),
		ParamCount: binary.LittleEndian.Uint16(e.payload[8:]),
		IsProc:     e.payload[10] != 0,
	}
}

// asAlias decodes an Alias entry without dealiasing.
func (p *Pool) asAlias(id ID) Alias {
	e := p.entryOf(id)
	p.requireTag(e, TagAlias)
	return Alias{
		Aliased:  ID(binary.LittleEndian.Uint32(e.payload)),
		Distinct: e.payload[4] != 0,
		Source:   source.ID(binary.LittleEndian.Uint32(e.payload[8:])),
		Name:     intern.ID(binary.LittleEndian.Uint32(e.payload[12:])),
	}
}

// AsAlias decodes an Alias entry. id must have that tag directly.
func (p *Pool) AsAlias(id ID) Alias {
	return p.asAlias(id.Strip())
}

func (p *Pool) requireTag(e *entry, tag Tag) {
	if e.tag != tag {
		panic(fmt.Sprintf("types: %s entry read as %s", e.tag, tag))
	}
}
