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

package report_test

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evl-lang/evl/report"
	"github.com/evl-lang/evl/source"
)

type exited struct{ code int }

func newSink(t *testing.T, src string) (*report.Sink, *source.Reader, source.ID, *strings.Builder) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t.evl", []byte(src), 0o644))
	reader := source.NewReader(fs, nil)
	read, err := reader.Read("/t.evl")
	require.NoError(t, err)

	var out strings.Builder
	sink := report.NewSink(reader,
		report.WithOutput(&out),
		report.WithExit(func(code int) { panic(exited{code}) }),
	)
	return sink, reader, read.File.Base, &out
}

func TestErrorfExitsWithStatusOne(t *testing.T) {
	t.Parallel()

	sink, _, base, out := newSink(t, "let a = 1\n")

	defer func() {
		r := recover()
		require.Equal(t, exited{1}, r)
		assert.Contains(t, out.String(), "/t.evl:1:5: error: bad definition")
		assert.Contains(t, out.String(), "let a = 1")
	}()
	sink.Errorf(base+4, "bad definition")
}

func TestWarnfContinues(t *testing.T) {
	t.Parallel()

	sink, _, base, out := newSink(t, "global x = 1\n")
	sink.Warnf(base, "redundant 'global' modifier")
	assert.Contains(t, out.String(), "/t.evl:1:1: warning: redundant 'global' modifier")
	assert.Equal(t, 1, sink.Warnings())
}

func TestNoPosition(t *testing.T) {
	t.Parallel()

	sink, _, _, out := newSink(t, "x")
	sink.Warnf(0, "synthesized")
	assert.Contains(t, out.String(), "<compiler>: warning: synthesized")
}
