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

// Package value stores compile-time values.
//
// A value is an 8-byte header followed by a payload sized per-type:
//
//	word 0: type id (assignability embedded)
//	word 1: bit 0 is-ref, bit 1 is-undefined
//
// Reference values (is-ref set) carry an 8-byte payload naming another
// value: currently always a global, addressed by its [GlobalID].
//
// Two containers exist: the [Stack], a qword-aligned LIFO byte arena the
// interpreter evaluates onto, and the [Globals] pool holding values with
// runtime-addressable identity.
package value

import (
	"encoding/binary"
	"fmt"

	"github.com/evl-lang/evl/internal/arena"
	"github.com/evl-lang/evl/types"
)

const (
	headerBytes = 8

	flagIsRef       uint32 = 0x1
	flagIsUndefined uint32 = 0x2
)

// GlobalID identifies a globally-addressable value. The zero value is
// invalid.
type GlobalID uint32

// Nil reports whether this is the invalid handle.
func (id GlobalID) Nil() bool {
	return id == 0
}

// Slot addresses one value on a [Stack]: the byte offset of its header.
// The zero value is invalid.
type Slot uint32

// Nil reports whether this is the invalid handle.
func (s Slot) Nil() bool {
	return s == 0
}

// Stack is the interpreter's value stack: a qword-aligned byte arena plus
// a parallel index stack forming a LIFO of values.
type Stack struct {
	data arena.Bytes
	inds []uint32
}

// NewStack returns an empty stack. The first qword is reserved so that
// Slot 0 stays invalid.
func NewStack() *Stack {
	s := &Stack{}
	s.data.Reserve(headerBytes)
	return s
}

// Depth returns the number of live values.
func (s *Stack) Depth() int {
	return len(s.inds)
}

// Push reserves a value of the given type and payload shape and returns
// its slot. The payload starts zeroed.
func (s *Stack) Push(typ types.ID, size, align uint32) Slot {
	if align < 8 {
		align = 8
	}
	s.data.PadTo(align)

	// The header sits directly before the aligned payload.
	off := s.data.Reserve(headerBytes + size)
	hdr := s.data.At(off, headerBytes)
	binary.LittleEndian.PutUint32(hdr, uint32(typ))

	s.inds = append(s.inds, off)
	return Slot(off)
}

// Pop discards the top value.
func (s *Stack) Pop() {
	if len(s.inds) == 0 {
		panic("value: pop on empty stack")
	}
	top := s.inds[len(s.inds)-1]
	s.inds = s.inds[:len(s.inds)-1]
	s.data.PopTo(top)
}

// PopTo discards values until depth values remain.
func (s *Stack) PopTo(depth int) {
	for len(s.inds) > depth {
		s.Pop()
	}
}

// Top returns the slot of the most recently pushed value.
func (s *Stack) Top() Slot {
	return s.At(0)
}

// At returns the slot index values below the top (At(0) is the top).
func (s *Stack) At(index int) Slot {
	if index >= len(s.inds) {
		panic(fmt.Sprintf("value: stack index %d out of range (depth %d)", index, len(s.inds)))
	}
	return Slot(s.inds[len(s.inds)-1-index])
}

func (s *Stack) header(slot Slot) []byte {
	return s.data.At(uint32(slot), headerBytes)
}

// Type returns the type of the value at slot.
func (s *Stack) Type(slot Slot) types.ID {
	return types.ID(binary.LittleEndian.Uint32(s.header(slot)))
}

// SetType rewrites the type of the value at slot.
func (s *Stack) SetType(slot Slot, typ types.ID) {
	binary.LittleEndian.PutUint32(s.header(slot), uint32(typ))
}

// IsRef reports whether the value at slot is a reference.
func (s *Stack) IsRef(slot Slot) bool {
	return binary.LittleEndian.Uint32(s.header(slot)[4:])&flagIsRef != 0
}

// IsUndefined reports whether the value at slot is undefined.
func (s *Stack) IsUndefined(slot Slot) bool {
	return binary.LittleEndian.Uint32(s.header(slot)[4:])&flagIsUndefined != 0
}

// SetUndefined flags the value at slot as undefined.
func (s *Stack) SetUndefined(slot Slot) {
	hdr := s.header(slot)
	binary.LittleEndian.PutUint32(hdr[4:], binary.LittleEndian.Uint32(hdr[4:])|flagIsUndefined)
}

// MarkRef turns the value at slot into a reference to global. Its payload
// must be at least 8 bytes.
func (s *Stack) MarkRef(slot Slot, global GlobalID) {
	hdr := s.header(slot)
	binary.LittleEndian.PutUint32(hdr[4:], binary.LittleEndian.Uint32(hdr[4:])|flagIsRef)
	payload := s.data.At(uint32(slot)+headerBytes, 8)
	binary.LittleEndian.PutUint32(payload, uint32(global))
}

// Referenced returns the global named by a reference value.
func (s *Stack) Referenced(slot Slot) GlobalID {
	if !s.IsRef(slot) {
		panic("value: non-reference read as reference")
	}
	payload := s.data.At(uint32(slot)+headerBytes, 8)
	return GlobalID(binary.LittleEndian.Uint32(payload))
}

// Payload returns size bytes of the raw payload at slot. The slice aliases
// the stack and is invalidated by the next Push.
//
// Payload does not resolve references; see [Stack.Access].
func (s *Stack) Payload(slot Slot, size uint32) []byte {
	return s.data.At(uint32(slot)+headerBytes, size)
}

// Access returns the payload the value at slot denotes: its own payload,
// or the referenced global's storage for reference values.
func (s *Stack) Access(slot Slot, size uint32, globals *Globals) []byte {
	if s.IsRef(slot) {
		_, data := globals.Get(s.Referenced(slot))
		return data[:size]
	}
	return s.Payload(slot, size)
}

// Globals stores values with runtime-addressable identity.
type Globals struct {
	types *types.Pool
	infos []globalInfo
	data  arena.Bytes
}

type globalInfo struct {
	typ  types.ID
	off  uint32
	size uint32
}

// NewGlobals returns an empty global value pool.
func NewGlobals(tp *types.Pool) *Globals {
	return &Globals{
		types: tp,
		// Entry 0 is the invalid handle.
		infos: make([]globalInfo, 1, 16),
	}
}

// Make allocates a global of the given type and shape, optionally copying
// an initial payload, and returns its handle.
func (g *Globals) Make(typ types.ID, size uint64, align uint32, initial []byte) GlobalID {
	if size > 1<<31 {
		panic(fmt.Sprintf("value: global of %d bytes exceeds the supported maximum", size))
	}
	if align < 1 {
		align = 1
	}

	g.data.PadTo(align)
	off := g.data.Reserve(uint32(size))
	if initial != nil {
		copy(g.data.At(off, uint32(size)), initial)
	}

	id := GlobalID(len(g.infos))
	g.infos = append(g.infos, globalInfo{typ: typ, off: off, size: uint32(size)})
	return id
}

// Get returns the type and storage of a global. The slice aliases the pool
// and is invalidated by the next Make.
func (g *Globals) Get(id GlobalID) (types.ID, []byte) {
	if id.Nil() || int(id) >= len(g.infos) {
		panic(fmt.Sprintf("value: invalid global handle %d", uint32(id)))
	}
	info := g.infos[id]
	return info.typ, g.data.At(info.off, info.size)
}

// SetType rewrites the recorded type of a global.
func (g *Globals) SetType(id GlobalID, typ types.ID) {
	if id.Nil() || int(id) >= len(g.infos) {
		panic(fmt.Sprintf("value: invalid global handle %d", uint32(id)))
	}
	g.infos[id].typ = typ
}
