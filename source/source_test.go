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

package source_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evl-lang/evl/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestReadCachesByPath(t *testing.T) {
	fs := newFs(t, map[string]string{"/src/main.evl": "let x = 1"})
	r := source.NewReader(fs, nil)

	first, err := r.Read("/src/main.evl")
	require.NoError(t, err)
	assert.True(t, first.Fresh)
	assert.Equal(t, "let x = 1", string(first.File.Text()))
	assert.EqualValues(t, 0, first.File.Content[len(first.File.Content)-1], "content must be NUL-terminated")

	second, err := r.Read("/src/main.evl")
	require.NoError(t, err)
	assert.False(t, second.Fresh)
	assert.Same(t, first.File, second.File)

	// An equivalent but non-identical spelling of the path normalizes to
	// the same cache key and hits the path cache.
	third, err := r.Read("/src/../src/main.evl")
	require.NoError(t, err)
	assert.False(t, third.Fresh)
	assert.Same(t, first.File, third.File)
}

func TestReadMissing(t *testing.T) {
	r := source.NewReader(afero.NewMemMapFs(), nil)
	_, err := r.Read("/nope.evl")
	assert.Error(t, err)
}

func TestBasesDisjoint(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/a.evl": "aaa",
		"/b.evl": "bbbbb",
	})
	r := source.NewReader(fs, nil)

	a, err := r.Read("/a.evl")
	require.NoError(t, err)
	b, err := r.Read("/b.evl")
	require.NoError(t, err)

	require.NotEqual(t, a.File.Base, b.File.Base)
	assert.Same(t, a.File, r.FileOf(a.File.Base))
	assert.Same(t, a.File, r.FileOf(a.File.Base+2))
	assert.Same(t, b.File, r.FileOf(b.File.Base))
	assert.Nil(t, r.FileOf(0))
}

func TestLocation(t *testing.T) {
	fs := newFs(t, map[string]string{"/l.evl": "let a = 1\nlet b = 2\n"})
	r := source.NewReader(fs, nil)

	f, err := r.Read("/l.evl")
	require.NoError(t, err)

	loc := r.Location(f.File.Base)
	assert.Equal(t, "/l.evl", loc.Path)
	assert.EqualValues(t, 1, loc.Line)
	assert.EqualValues(t, 1, loc.Column)
	assert.Equal(t, "let a = 1", loc.Context)

	// Offset 14 is the 'b' on line two.
	loc = r.Location(f.File.Base + 14)
	assert.EqualValues(t, 2, loc.Line)
	assert.EqualValues(t, 5, loc.Column)
	assert.Equal(t, "let b = 2", loc.Context)

	assert.Equal(t, source.Location{}, r.Location(0))
}

func TestPrefetch(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/a.evl": "a",
		"/b.evl": "b",
		"/c.evl": "c",
	})
	r := source.NewReader(fs, nil)
	require.NoError(t, r.Prefetch("/a.evl", "/b.evl", "/c.evl"))

	got, err := r.Read("/b.evl")
	require.NoError(t, err)
	assert.False(t, got.Fresh)
}
