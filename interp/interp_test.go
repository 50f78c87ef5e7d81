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

package interp_test

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/interp"
	"github.com/evl-lang/evl/parser"
	"github.com/evl-lang/evl/report"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
)

type exited struct{ code int }

// newInterp wires the pipeline by hand, without the root package.
func newInterp(t *testing.T, files map[string]string) (*interp.Interpreter, *types.Pool) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	reader := source.NewReader(fs, nil)
	errs := report.NewSink(reader,
		report.WithOutput(io.Discard),
		report.WithExit(func(code int) { panic(exited{code}) }),
	)
	identifiers := intern.NewPool()
	typePool := types.NewPool()
	astPool := ast.NewPool()
	p := parser.New(identifiers, errs)

	in := interp.New(interp.Config{StdPath: "/std.evl"},
		reader, p, typePool, astPool, identifiers, errs)
	return in, typePool
}

func TestPreludeBootstrap(t *testing.T) {
	in, tp := newInterp(t, map[string]string{
		"/std.evl":     `let prelude = _import("/prelude.evl", _true)`,
		"/prelude.evl": "let answer = 42",
	})

	// The bootstrap file exposes std and the use'd prelude.
	preludeType := in.PreludeType()
	require.False(t, preludeType.Nil())
	require.Equal(t, types.TagComposite, tp.Tag(preludeType))
	assert.Equal(t, 2, tp.MemberCount(preludeType))

	stdType, ok := in.MemberType(preludeType, "std")
	require.True(t, ok)
	assert.Equal(t, types.TagType, tp.Tag(stdType))
}

func TestImportRootSeesPrelude(t *testing.T) {
	in, _ := newInterp(t, map[string]string{
		"/std.evl":     `let prelude = _import("/prelude.evl", _true)`,
		"/prelude.evl": "let answer = 42",
		"/main.evl":    "let doubled = answer + answer",
	})

	fileType := in.ImportRoot("/main.evl")

	_, data, ok := in.MemberValue(fileType, "doubled")
	require.True(t, ok)
	assert.EqualValues(t, 84, interp.CompIntegerAt(data).Value())
}

func TestMemberValueIsCached(t *testing.T) {
	in, _ := newInterp(t, map[string]string{
		"/std.evl":     `let prelude = _import("/prelude.evl", _true)`,
		"/prelude.evl": "let answer = 42",
		"/main.evl":    "let v = 7",
	})

	fileType := in.ImportRoot("/main.evl")

	_, first, ok := in.MemberValue(fileType, "v")
	require.True(t, ok)
	_, second, ok := in.MemberValue(fileType, "v")
	require.True(t, ok)
	assert.Equal(t, first, second)

	// The value stack drains back to empty between queries.
	assert.Equal(t, 0, in.Stack().Depth())
}

func TestUnknownMember(t *testing.T) {
	in, _ := newInterp(t, map[string]string{
		"/std.evl":     `let prelude = _import("/prelude.evl", _true)`,
		"/prelude.evl": "let answer = 42",
		"/main.evl":    "let v = 7",
	})

	fileType := in.ImportRoot("/main.evl")

	_, ok := in.MemberType(fileType, "missing")
	assert.False(t, ok)
	_, _, ok = in.MemberValue(fileType, "missing")
	assert.False(t, ok)
}
