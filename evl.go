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

// Package evl wires the semantic-analysis pipeline together: source
// reading, parsing, type pooling, and compile-time interpretation.
package evl

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/evl-lang/evl/ast"
	"github.com/evl-lang/evl/intern"
	"github.com/evl-lang/evl/interp"
	"github.com/evl-lang/evl/parser"
	"github.com/evl-lang/evl/report"
	"github.com/evl-lang/evl/source"
	"github.com/evl-lang/evl/types"
)

// Config is the compiler configuration, optionally loaded from evl.yaml.
type Config struct {
	Entrypoint struct {
		Filepath string `yaml:"filepath"`
		Symbol   string `yaml:"symbol"`
	} `yaml:"entrypoint"`

	Std struct {
		Filepath string `yaml:"filepath"`
	} `yaml:"std"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.Entrypoint.Filepath = "main.evl"
	cfg.Entrypoint.Symbol = "main"
	cfg.Std.Filepath = "std.evl"
	return cfg
}

// LoadConfig reads a YAML config file, merging it over the defaults.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("evl: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("evl: parse config %s: %w", path, err)
	}
	if cfg.Entrypoint.Filepath == "" || cfg.Std.Filepath == "" {
		return cfg, fmt.Errorf("evl: config %s names empty file paths", path)
	}
	return cfg, nil
}

// Compiler owns every pool of one compilation and runs the pipeline.
//
// All pools are grow-only during a run and released together when the
// Compiler is dropped; there is no module-level state.
type Compiler struct {
	Config Config

	Reader      *source.Reader
	Parser      *parser.Parser
	Types       *types.Pool
	ASTs        *ast.Pool
	Identifiers *intern.Pool
	Errs        *report.Sink
	Interp      *interp.Interpreter

	log logrus.FieldLogger
}

// Option configures a Compiler.
type Option func(*options)

type options struct {
	fs         afero.Fs
	log        logrus.FieldLogger
	sinkOption []report.Option
}

// WithFs replaces the filesystem the source reader uses. Defaults to the
// host filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger replaces the compiler's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithSinkOptions forwards options to the diagnostic sink.
func WithSinkOptions(opts ...report.Option) Option {
	return func(o *options) { o.sinkOption = append(o.sinkOption, opts...) }
}

// NewCompiler builds the pipeline. This runs the prelude bootstrap, so
// the standard library named by cfg must be readable.
func NewCompiler(cfg Config, opts ...Option) *Compiler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.log == nil {
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.WarnLevel)
		o.log = logger
	}

	reader := source.NewReader(o.fs, o.log)
	errs := report.NewSink(reader, o.sinkOption...)
	identifiers := intern.NewPool()
	typePool := types.NewPool()
	astPool := ast.NewPool()
	p := parser.New(identifiers, errs)

	in := interp.New(interp.Config{
		StdPath: cfg.Std.Filepath,
		Logger:  o.log,
	}, reader, p, typePool, astPool, identifiers, errs)

	return &Compiler{
		Config:      cfg,
		Reader:      reader,
		Parser:      p,
		Types:       typePool,
		ASTs:        astPool,
		Identifiers: identifiers,
		Errs:        errs,
		Interp:      in,
		log:         o.log,
	}
}

// Compile analyzes the configured entrypoint file and returns its scope
// type. Any source error terminates the process through the sink.
func (c *Compiler) Compile() types.ID {
	c.log.WithField("path", c.Config.Entrypoint.Filepath).Debug("compiling entrypoint")
	return c.Interp.ImportRoot(c.Config.Entrypoint.Filepath)
}

// CompileFile analyzes one file and returns its scope type.
func (c *Compiler) CompileFile(path string) types.ID {
	return c.Interp.ImportRoot(path)
}
