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

// Command evl runs semantic analysis over evl source files.
package main

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/evl-lang/evl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		stdPath    string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "evl [files or globs]",
		Short: "Semantic analysis for evl source files",
		Long: "evl parses, typechecks and compile-time-evaluates the given source\n" +
			"files (or the configured entrypoint when none are given). Any source\n" +
			"error exits with status 1.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.New()
			logger.SetOutput(os.Stderr)
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			} else {
				logger.SetLevel(logrus.WarnLevel)
			}

			fs := afero.NewOsFs()

			cfg := evl.DefaultConfig()
			if configPath != "" {
				loaded, err := evl.LoadConfig(fs, configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if stdPath != "" {
				cfg.Std.Filepath = stdPath
			}

			paths, err := expandArgs(args)
			if err != nil {
				return err
			}

			compiler := evl.NewCompiler(cfg, evl.WithFs(fs), evl.WithLogger(logger))

			if len(paths) == 0 {
				compiler.Compile()
				return nil
			}
			for _, path := range paths {
				compiler.CompileFile(path)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to an evl.yaml config file")
	flags.StringVar(&stdPath, "std", "", "path to the standard library root")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(name)
	})

	return cmd
}

// expandArgs expands doublestar globs; plain paths pass through.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !doublestar.ValidatePattern(arg) {
			return nil, fmt.Errorf("invalid glob pattern %q", arg)
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", arg, err)
		}
		if len(matches) == 0 {
			// Not a pattern match; treat as a literal path.
			paths = append(paths, arg)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
