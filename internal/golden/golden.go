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

// Package golden compares multi-line test output against expected text,
// rendering a unified diff on mismatch.
package golden

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

// Require fails the test with a unified diff when got differs from want.
// Leading and trailing blank lines of want are ignored so expectations can
// be written as indented raw string literals.
func Require(t *testing.T, want, got string) {
	t.Helper()

	want = normalize(want)
	got = normalize(got)
	if want == got {
		return
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	if err != nil {
		t.Fatalf("golden: diff failed: %v", err)
	}
	t.Fatalf("golden mismatch:\n%s", diff)
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = strings.Trim(out, "\n")
	return out + "\n"
}
