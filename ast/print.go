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

import (
	"fmt"
	"io"
	"strings"

	"github.com/evl-lang/evl/intern"
)

// Print writes an indented debug rendering of the tree rooted at node.
//
// identifiers may be nil, in which case identifier attachments render as
// raw handles.
func Print(w io.Writer, node Node, identifiers *intern.Pool) {
	printNode(w, node, identifiers, 0)

	it := Preorder(node)
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		printNode(w, r.Node, identifiers, int(r.Depth)+1)
	}
}

func printNode(w io.Writer, n Node, identifiers *intern.Pool, depth int) {
	fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), n.Tag())

	switch n.Tag() {
	case TagDefinition:
		fmt.Fprintf(w, " %s", spell(identifiers, n.DefinitionName()))
	case TagIdentifier:
		fmt.Fprintf(w, " %s", spell(identifiers, n.IdentifierID()))
	case TagLitString:
		fmt.Fprintf(w, " %q", spell(identifiers, n.StringID()))
	case TagLitInteger:
		fmt.Fprintf(w, " %d", n.IntegerValue())
	case TagLitFloat:
		fmt.Fprintf(w, " %g", n.FloatValue())
	case TagLitChar:
		fmt.Fprintf(w, " %q", rune(n.CharValue()))
	case TagBuiltin:
		fmt.Fprintf(w, " #%d", n.BuiltinOrdinal())
	}

	if flags := n.Flags(); flags != 0 && n.Tag() != TagBuiltin {
		fmt.Fprintf(w, " [%#x]", uint8(flags))
	}

	io.WriteString(w, "\n")
}

func spell(identifiers *intern.Pool, id intern.ID) string {
	if identifiers == nil {
		return fmt.Sprintf("#%d", uint32(id))
	}
	return identifiers.Bytes(id)
}
