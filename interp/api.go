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

package interp

import (
	"encoding/binary"

	"github.com/evl-lang/evl/comp"
	"github.com/evl-lang/evl/types"
)

// MemberType resolves and returns the type of a named member of a file
// (or any composite) scope, completing it lazily if needed.
func (interp *Interpreter) MemberType(scope types.ID, name string) (types.ID, bool) {
	member, ok := interp.types.MemberByName(scope, interp.identifiers.ID(name))
	if !ok {
		return types.Invalid, false
	}

	interp.pushContext(scope, true)
	defer interp.popContext(true)

	return interp.delayedTypecheckMember(&member), true
}

// MemberValue evaluates (or fetches the cached value of) a named member
// and returns its type and storage bytes.
func (interp *Interpreter) MemberValue(scope types.ID, name string) (types.ID, []byte, bool) {
	member, ok := interp.types.MemberByName(scope, interp.identifiers.ID(name))
	if !ok {
		return types.Invalid, nil, false
	}

	interp.pushContext(scope, true)
	defer interp.popContext(true)

	interp.delayedTypecheckMember(&member)
	gid := interp.memberGlobal(member.Surrounding, member)
	typ, data := interp.globals.Get(gid)
	return typ, data, true
}

// CompIntegerAt decodes a compile-time integer from member storage bytes.
func CompIntegerAt(data []byte) comp.Integer {
	return comp.IntegerFromRep(binary.LittleEndian.Uint64(data))
}

// TypeAt decodes a type handle from member storage bytes.
func TypeAt(data []byte) types.ID {
	return types.ID(binary.LittleEndian.Uint32(data))
}
