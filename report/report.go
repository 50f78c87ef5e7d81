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

// Package report renders source-location-tagged diagnostics.
//
// The analyzer is a one-shot: a source error renders its message with file,
// line and column and terminates the process with exit status 1. Nothing
// recovers; callers never inspect error objects. Warnings render and
// continue.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/evl-lang/evl/source"
)

// Sink is the fatal diagnostic sink shared by the whole pipeline.
type Sink struct {
	reader *source.Reader
	out    io.Writer
	exit   func(code int)

	errorLabel, warningLabel func(format string, a ...any) string

	warnings int
}

// Option configures a [Sink].
type Option func(*Sink)

// WithOutput redirects diagnostic rendering, which defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(s *Sink) { s.out = w }
}

// WithExit replaces the process-terminating exit function. Tests use this
// to intercept fatal diagnostics; the replacement must not return, or the
// sink panics.
func WithExit(exit func(code int)) Option {
	return func(s *Sink) { s.exit = exit }
}

// NewSink returns a sink resolving positions through reader.
func NewSink(reader *source.Reader, opts ...Option) *Sink {
	s := &Sink{
		reader: reader,
		out:    os.Stderr,
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(s)
	}

	styled := s.out == os.Stderr && isatty.IsTerminal(os.Stderr.Fd())
	if styled {
		s.errorLabel = color.New(color.FgRed, color.Bold).Sprintf
		s.warningLabel = color.New(color.FgYellow, color.Bold).Sprintf
	} else {
		s.errorLabel = fmt.Sprintf
		s.warningLabel = fmt.Sprintf
	}
	return s
}

// Errorf renders a fatal source error at id and terminates the process
// with exit status 1. It never returns.
func (s *Sink) Errorf(id source.ID, format string, args ...any) {
	s.render(s.errorLabel("error"), id, format, args...)
	s.exit(1)
	panic("report: exit function returned")
}

// Warnf renders a warning at id and returns.
func (s *Sink) Warnf(id source.ID, format string, args ...any) {
	s.render(s.warningLabel("warning"), id, format, args...)
	s.warnings++
}

// Warnings returns the number of warnings rendered so far.
func (s *Sink) Warnings() int {
	return s.warnings
}

func (s *Sink) render(label string, id source.ID, format string, args ...any) {
	loc := s.reader.Location(id)
	path := loc.Path
	if path == "" {
		path = "<compiler>"
	}

	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	if loc.Path == "" {
		fmt.Fprintf(s.out, "%s: %s: %s\n", path, label, msg)
		return
	}

	fmt.Fprintf(s.out, "%s:%d:%d: %s: %s\n", path, loc.Line, loc.Column, label, msg)
	if loc.Context != "" {
		fmt.Fprintf(s.out, "  %s\n  %*s\n", loc.Context, loc.Column, "^")
	}
}
