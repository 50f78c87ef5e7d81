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

// Builtin selects one compiler-provided function. Builtin nodes store the
// selector in their flag byte.
type Builtin uint8

const (
	BuiltinInteger Builtin = iota
	BuiltinType
	BuiltinDefinition
	BuiltinCompInteger
	BuiltinCompFloat
	BuiltinCompString
	BuiltinTypeBuilder
	BuiltinTrue
	BuiltinTypeof
	BuiltinReturnTypeof
	BuiltinSizeof
	BuiltinAlignof
	BuiltinStrideof
	BuiltinOffsetof
	BuiltinNameof
	BuiltinImport
	BuiltinCreateTypeBuilder
	BuiltinAddTypeMember
	BuiltinCompleteType

	NumBuiltins
)

var builtinNames = [...]string{
	BuiltinInteger:           "_integer",
	BuiltinType:              "_type",
	BuiltinDefinition:        "_definition",
	BuiltinCompInteger:       "_comp_integer",
	BuiltinCompFloat:         "_comp_float",
	BuiltinCompString:        "_comp_string",
	BuiltinTypeBuilder:       "_type_builder",
	BuiltinTrue:              "_true",
	BuiltinTypeof:            "_typeof",
	BuiltinReturnTypeof:      "_returntypeof",
	BuiltinSizeof:            "_sizeof",
	BuiltinAlignof:           "_alignof",
	BuiltinStrideof:          "_strideof",
	BuiltinOffsetof:          "_offsetof",
	BuiltinNameof:            "_nameof",
	BuiltinImport:            "_import",
	BuiltinCreateTypeBuilder: "_create_type_builder",
	BuiltinAddTypeMember:     "_add_type_member",
	BuiltinCompleteType:      "_complete_type",
}

// String returns the builtin's source spelling, underscore included.
func (b Builtin) String() string {
	if int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return "[unknown builtin]"
}

// builtinsBySpelling maps the post-underscore spelling to the selector.
var builtinsBySpelling = func() map[string]Builtin {
	m := make(map[string]Builtin, NumBuiltins)
	for b := Builtin(0); b < NumBuiltins; b++ {
		m[builtinNames[b][1:]] = b
	}
	return m
}()

// BuiltinBySpelling resolves the identifier characters after the leading
// underscore of a builtin token.
func BuiltinBySpelling(spelling string) (Builtin, bool) {
	b, ok := builtinsBySpelling[spelling]
	return b, ok
}
