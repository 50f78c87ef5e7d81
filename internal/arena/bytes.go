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

package arena

import "fmt"

// Bytes is a grow-only byte arena with explicit alignment padding.
//
// It backs the interpreter's value stack and the global value pool, which
// address their contents by byte offset rather than by element index.
// Offsets handed out by Reserve remain valid for the lifetime of the arena;
// the backing slice may move, so callers must go through At.
type Bytes struct {
	buf []byte
}

// Len returns the number of bytes reserved so far.
func (b *Bytes) Len() uint32 {
	return uint32(len(b.buf))
}

// PadTo pads the arena so that the next reservation starts at a multiple
// of align, which must be a power of two.
func (b *Bytes) PadTo(align uint32) {
	if align&(align-1) != 0 {
		panic(fmt.Sprintf("arena: alignment %d is not a power of two", align))
	}
	rem := uint32(len(b.buf)) & (align - 1)
	if rem != 0 {
		b.buf = append(b.buf, make([]byte, align-rem)...)
	}
}

// Reserve appends size zeroed bytes and returns the offset of the first.
func (b *Bytes) Reserve(size uint32) uint32 {
	off := uint32(len(b.buf))
	b.buf = append(b.buf, make([]byte, size)...)
	return off
}

// At returns the size bytes starting at off. The returned slice aliases the
// arena and is invalidated by the next Reserve.
func (b *Bytes) At(off, size uint32) []byte {
	return b.buf[off : off+size : off+size]
}

// PopTo discards everything at or after off.
func (b *Bytes) PopTo(off uint32) {
	b.buf = b.buf[:off]
}
