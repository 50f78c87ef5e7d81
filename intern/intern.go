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

// Package intern provides the identifier pool.
//
// The pool maps byte sequences to stable [ID] handles and back. It doubles
// as the keyword table: every entry carries the token kind its spelling
// lexes to, so the lexer classifies keywords with the same lookup that
// interns ordinary identifiers.
package intern

import (
	"fmt"

	"github.com/evl-lang/evl/token"
)

// ID is an interned identifier in a particular [Pool].
//
// IDs can be compared very cheaply. The zero value is reserved as invalid
// and never returned for any byte sequence.
type ID uint32

// Invalid is the reserved nil identifier handle.
const Invalid ID = 0

// Nil returns whether this is the invalid handle.
func (id ID) Nil() bool {
	return id == Invalid
}

// String implements [fmt.Stringer].
//
// Note that this will not convert the ID back into its spelling; to do
// that, call [Pool.Bytes].
func (id ID) String() string {
	return fmt.Sprintf("intern.ID(%d)", uint32(id))
}

// Entry is the stored form of one identifier.
type Entry struct {
	Spelling string

	// Token is the kind this spelling lexes to. token.Ident for everything
	// except registered keywords.
	Token token.Kind
}

// Pool is an append-only identifier pool.
//
// The semantic pipeline is single-threaded; the pool performs no locking.
type Pool struct {
	index   map[string]ID
	entries []Entry
}

// FNV-1a, as in the original table implementation. The index map makes the
// hash redundant for lookup; the pool does not call Hash, which is exported
// as a standalone helper.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// Hash returns the FNV-1a hash of s.
func Hash(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h = (h ^ uint32(s[i])) * fnvPrime
	}
	return h
}

// NewPool returns a pool with every language keyword pre-registered.
func NewPool() *Pool {
	p := &Pool{
		index: make(map[string]ID, 64),
		// Entry 0 is the invalid handle.
		entries: make([]Entry, 1, 64),
	}
	for _, kw := range token.Keywords() {
		id := p.ID(kw.Spelling)
		p.entries[id].Token = kw.Kind
	}
	return p
}

// ID interns the given spelling, returning its stable handle.
//
// Interning the same byte sequence always yields the same handle, across
// calls and regardless of how the bytes were produced.
func (p *Pool) ID(spelling string) ID {
	if id, ok := p.index[spelling]; ok {
		return id
	}

	id := ID(len(p.entries))
	if uint32(id) == 0 {
		panic("intern: identifier pool exhausted")
	}

	p.entries = append(p.entries, Entry{Spelling: spelling, Token: token.Ident})
	p.index[spelling] = id
	return id
}

// IDBytes is [Pool.ID] for a byte slice, cloning only on first sight.
func (p *Pool) IDBytes(spelling []byte) ID {
	if id, ok := p.index[string(spelling)]; ok {
		return id
	}
	return p.ID(string(spelling))
}

// Bytes converts an ID back into its spelling.
//
// Panics if id was not produced by this pool.
func (p *Pool) Bytes(id ID) string {
	return p.Entry(id).Spelling
}

// Entry returns the full entry for id.
func (p *Pool) Entry(id ID) *Entry {
	if id.Nil() || int(id) >= len(p.entries) {
		panic(fmt.Sprintf("intern: invalid identifier handle %d", uint32(id)))
	}
	return &p.entries[id]
}

// Len returns the number of interned identifiers, including keywords.
func (p *Pool) Len() int {
	return len(p.entries) - 1
}
