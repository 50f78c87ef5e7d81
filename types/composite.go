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
	"fmt"

	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/source"
)

// ResumptionID is a typechecker resumption token: an index into the
// interpreter's context stack recorded when a pending member was
// discovered. The zero value is invalid.
type ResumptionID uint32

// Member is one member of a composite type.
type Member struct {
	Name   intern.ID
	Source source.ID

	IsPub    bool
	IsMut    bool
	IsGlobal bool
	IsUse    bool

	// Offset is the member's byte offset inside instances of the type,
	// or the global value handle when IsGlobal.
	Offset uint64

	// Type is the member's resolved type; Invalid while the member is
	// pending.
	Type ID

	// Pending members carry the resumption token and the AST handles of
	// their type and value expressions. The handles are stored raw
	// (ast.NodeID reps) to keep this package below the AST in the
	// dependency order.
	HasPendingType bool
	Resumption     ResumptionID
	TypeNode       uint32
	ValueNode      uint32
}

// MemberInfo is a member looked up in a composite, together with where it
// was found.
type MemberInfo struct {
	Member

	// Surrounding is the composite the member was found in.
	Surrounding ID

	// Rank is the member's index in declaration order.
	Rank uint16
}

// composite is the member data of one nominal composite type.
type composite struct {
	source source.ID
	open   bool

	size   uint64
	align  uint32
	stride uint64

	members []Member
	byName  map[intern.ID]uint16
}

// MaxMembers bounds a composite so that member ranks fit 16 bits.
const MaxMembers = 1 << 16

// CreateOpen allocates a fresh open composite. Members may be added until
// [Pool.Close]; the id is usable as a scope context immediately.
func (p *Pool) CreateOpen(src source.ID) ID {
	return p.append(entry{
		tag: TagComposite,
		composite: &composite{
			source: src,
			open:   true,
			byName: make(map[intern.ID]uint16),
		},
	})
}

func (p *Pool) compositeOf(id ID) *composite {
	e := p.entryOf(p.Dealias(id))
	if e.composite == nil {
		panic(fmt.Sprintf("types: %s entry used as composite", e.tag))
	}
	return e.composite
}

// AddOpenMember records a member on an open composite.
func (p *Pool) AddOpenMember(id ID, member Member) {
	c := p.compositeOf(id)
	if !c.open {
		panic("types: member added to closed composite")
	}
	if len(c.members) >= MaxMembers {
		panic(fmt.Sprintf("types: composite exceeds the maximum of %d members", MaxMembers))
	}
	if _, exists := c.byName[member.Name]; exists {
		panic(fmt.Sprintf("types: duplicate member %d in composite", uint32(member.Name)))
	}

	c.byName[member.Name] = uint16(len(c.members))
	c.members = append(c.members, member)
}

// Close finalizes an open composite's layout. Member types may still be
// unresolved afterwards; they complete lazily through
// [Pool.SetIncompleteMemberType].
func (p *Pool) Close(id ID, size uint64, align uint32, stride uint64) {
	c := p.compositeOf(id)
	if !c.open {
		panic("types: composite closed twice")
	}
	c.open = false
	c.size = size
	c.align = align
	c.stride = stride
}

// IsOpen reports whether id is a composite still accepting members.
func (p *Pool) IsOpen(id ID) bool {
	return p.compositeOf(id).open
}

// CompositeSource returns the source position an open composite was
// created at.
func (p *Pool) CompositeSource(id ID) source.ID {
	return p.compositeOf(id).source
}

// MemberCount returns the number of members of a composite.
func (p *Pool) MemberCount(id ID) int {
	return len(p.compositeOf(id).members)
}

// MemberByName looks up a member by name.
func (p *Pool) MemberByName(id ID, name intern.ID) (MemberInfo, bool) {
	c := p.compositeOf(id)
	rank, ok := c.byName[name]
	if !ok {
		return MemberInfo{}, false
	}
	return MemberInfo{Member: c.members[rank], Surrounding: p.Dealias(id).Strip(), Rank: rank}, true
}

// MemberByRank looks up a member by declaration order.
func (p *Pool) MemberByRank(id ID, rank uint16) (MemberInfo, bool) {
	c := p.compositeOf(id)
	if int(rank) >= len(c.members) {
		return MemberInfo{}, false
	}
	return MemberInfo{Member: c.members[rank], Surrounding: p.Dealias(id).Strip(), Rank: rank}, true
}

// SetIncompleteMemberType resolves a pending member's type. Called by the
// typechecker after the member's expressions have been checked and
// evaluated.
func (p *Pool) SetIncompleteMemberType(id ID, rank uint16, memberType ID) {
	c := p.compositeOf(id)
	m := &c.members[rank]
	if !m.HasPendingType {
		panic("types: completed member completed again")
	}
	m.HasPendingType = false
	m.Type = memberType
	m.Resumption = 0
}

// SetMemberGlobalValue records the global value handle backing a global
// member.
func (p *Pool) SetMemberGlobalValue(id ID, rank uint16, value uint32) {
	c := p.compositeOf(id)
	c.members[rank].Offset = uint64(value)
}

// IncompleteMemberIterator yields the members of a composite whose types
// are still pending.
type IncompleteMemberIterator struct {
	pool *Pool
	id   ID
	next uint16
}

// IncompleteMembers returns an iterator over the still-pending members of
// a closed composite.
func (p *Pool) IncompleteMembers(id ID) IncompleteMemberIterator {
	return IncompleteMemberIterator{pool: p, id: id}
}

// Next returns the next pending member, or false when none remain.
func (it *IncompleteMemberIterator) Next() (MemberInfo, bool) {
	c := it.pool.compositeOf(it.id)
	for int(it.next) < len(c.members) {
		rank := it.next
		it.next++
		if c.members[rank].HasPendingType {
			return MemberInfo{Member: c.members[rank], Surrounding: it.id.Strip(), Rank: rank}, true
		}
	}
	return MemberInfo{}, false
}
