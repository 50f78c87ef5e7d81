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

// Package mathx contains tiny generic numeric helpers shared by the type
// pool and the interpreter's layout code.
package mathx

import "golang.org/x/exp/constraints"

// NextPow2 returns the smallest power of two not less than v.
func NextPow2[T constraints.Unsigned](v T) T {
	n := T(1)
	for n < v {
		n <<= 1
	}
	return n
}

// NextMultiple rounds v up to the next multiple of align. align zero
// passes v through.
func NextMultiple[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// IsPow2 reports whether v is a power of two.
func IsPow2[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}
