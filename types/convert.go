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

	"github.com/evl-lang/evl/internal/ext/mathx"
)

// CanImplicitlyConvert reports whether a value of type from may be used
// where type to is expected without an explicit cast.
//
// The rules: identity after stripping non-distinct aliases, array to slice
// or multi-pointer over the same element, slice to multi-pointer,
// compile-time integer to any concrete integer, compile-time float to any
// concrete float, compile-time string to a u8 slice, array or
// multi-pointer, and Type to TypeInfo.
func (p *Pool) CanImplicitlyConvert(from, to ID) bool {
	from = p.DealiasTransparent(from).Strip()
	to = p.DealiasTransparent(to).Strip()

	if from == to {
		return true
	}

	switch p.Tag(from) {
	case TagArray:
		fromElem := p.Dealias(p.AsArray(from).Element).Strip()

		switch p.Tag(to) {
		case TagSlice:
			return fromElem == p.Dealias(p.AsReference(to).Referenced).Strip()
		case TagPtr:
			ref := p.AsReference(to)
			return ref.IsMulti && fromElem == p.Dealias(ref.Referenced).Strip()
		case TagArray:
			toArr := p.AsArray(to)
			return p.AsArray(from).Count == toArr.Count &&
				fromElem == p.Dealias(toArr.Element).Strip()
		}
		return false

	case TagSlice:
		fromElem := p.Dealias(p.AsReference(from).Referenced).Strip()

		switch p.Tag(to) {
		case TagSlice:
			return fromElem == p.Dealias(p.AsReference(to).Referenced).Strip()
		case TagPtr:
			ref := p.AsReference(to)
			return ref.IsMulti && fromElem == p.Dealias(ref.Referenced).Strip()
		}
		return false

	case TagCompInteger:
		return p.Tag(to) == TagInteger

	case TagType:
		// Reflection builtins take TypeInfo; a bare type satisfies them.
		return p.Tag(to) == TagTypeInfo

	case TagCompFloat:
		return p.Tag(to) == TagFloat

	case TagCompString:
		var elem ID
		switch p.Tag(to) {
		case TagArray:
			elem = p.AsArray(to).Element
		case TagSlice:
			elem = p.AsReference(to).Referenced
		case TagPtr:
			ref := p.AsReference(to)
			if !ref.IsMulti {
				return false
			}
			elem = ref.Referenced
		default:
			return false
		}
		if p.Tag(elem) != TagInteger {
			return false
		}
		it := p.AsInteger(elem)
		return it.Bits == 8 && !it.Signed
	}

	return false
}

// CommonType returns the type both a and b implicitly convert to, picking
// the concrete side of a compile-time/concrete pair. Returns Invalid when
// the types are incompatible. The result carries no assignability.
func (p *Pool) CommonType(a, b ID) ID {
	da := p.DealiasTransparent(a).Strip()
	db := p.DealiasTransparent(b).Strip()

	if da == db {
		return da
	}

	ta := p.Tag(da)
	tb := p.Tag(db)

	switch {
	case ta == TagCompInteger && tb == TagInteger:
		return db
	case tb == TagCompInteger && ta == TagInteger:
		return da
	case ta == TagCompFloat && tb == TagFloat:
		return db
	case tb == TagCompFloat && ta == TagFloat:
		return da
	}

	return Invalid
}

// Metrics is the memory shape of one type.
type Metrics struct {
	Size   uint64
	Align  uint32
	Stride uint64
}

// Metrics returns the size, alignment and stride of id.
//
// Compile-time-only values have interpreter-defined shapes: a Type is its
// 4-byte handle, a compile-time integer its 8-byte tagged word, a
// compile-time string its 4-byte interned handle.
func (p *Pool) Metrics(id ID) Metrics {
	id = p.Dealias(id).Strip()

	switch p.RawTag(id) {
	case TagVoid:
		return Metrics{Size: 0, Align: 1, Stride: 0}
	case TagType, TagTypeBuilder, TagTypeInfo:
		return Metrics{Size: 4, Align: 4, Stride: 4}
	case TagCompInteger, TagCompFloat:
		return Metrics{Size: 8, Align: 8, Stride: 8}
	case TagCompString:
		return Metrics{Size: 4, Align: 4, Stride: 4}
	case TagBoolean:
		return Metrics{Size: 1, Align: 1, Stride: 1}
	case TagInteger:
		bytes := mathx.NextPow2((uint64(p.AsInteger(id).Bits) + 7) / 8)
		if bytes > 8 {
			panic("types: integer widths above 64 bits are not supported")
		}
		return Metrics{Size: bytes, Align: uint32(bytes), Stride: bytes}
	case TagFloat:
		bits := p.AsFloat(id).Bits
		if bits != 32 && bits != 64 {
			panic("types: floats must be 32 or 64 bits")
		}
		bytes := uint64(bits) / 8
		return Metrics{Size: bytes, Align: uint32(bytes), Stride: bytes}
	case TagSlice:
		return Metrics{Size: 16, Align: 8, Stride: 16}
	case TagPtr:
		return Metrics{Size: 8, Align: 8, Stride: 8}
	case TagArray:
		arr := p.AsArray(id)
		elem := p.Metrics(arr.Element)
		return Metrics{
			Size:   elem.Stride * arr.Count,
			Align:  elem.Align,
			Stride: mathx.NextMultiple(elem.Stride*arr.Count, uint64(elem.Align)),
		}
	case TagComposite:
		c := p.compositeOf(id)
		if c.open {
			panic("types: metrics of open composite")
		}
		return Metrics{Size: c.size, Align: c.align, Stride: c.stride}
	default:
		panic(fmt.Sprintf("types: metrics of %s are not supported", p.RawTag(id)))
	}
}

