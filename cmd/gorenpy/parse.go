/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gorenpy/internal/export"
	applog "gorenpy/internal/log"
	"gorenpy/internal/script"
)

// readSource reads path, or standard input for "-".
func readSource(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// errParseFailed is returned after the per-file errors have been printed.
var errParseFailed = errors.New("one or more scripts failed to parse")

func newParseCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "parse <file>... | -",
		Short: "Parse scripts and print an outline, the canonical source or the JSON tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := applog.WithOperation(applog.WithComponent("cli"), "parse")
			out := cmd.OutOrStdout()
			failed := false
			for _, path := range args {
				a.crash.File = path
				src, err := readSource(cmd, path)
				if err != nil {
					return err
				}
				f, err := script.Parse(src, a.cfg.Parser.ScriptOptions()...)
				if err != nil {
					var se *script.Error
					if !errors.As(err, &se) {
						return err
					}
					failed = true
					l.Debug("parse failed", slog.String("file", path), slog.Any("err", err))
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s:%s\n", path, se.Snippet(src))
					continue
				}
				if err := printTree(out, output, path, f); err != nil {
					return err
				}
			}
			a.crash.File = ""
			if failed {
				return errParseFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "outline", "Output: outline, labels, source, json or none")
	return cmd
}

func printTree(w io.Writer, output, path string, f *script.SourceFile) error {
	switch strings.ToLower(output) {
	case "outline":
		_, _ = fmt.Fprintf(w, "%s: %d statements\n", path, countStatements(f))
		for _, e := range script.Outline(f) {
			_, _ = fmt.Fprintf(w, "%5d  %s%s\n", e.Span.Start.Line, strings.Repeat("  ", e.Depth), e.Text)
		}
	case "source":
		_, _ = io.WriteString(w, script.Format(f))
	case "labels":
		for _, l := range script.Labels(f) {
			_, _ = fmt.Fprintf(w, "%s:%d:%d\t%s\n", path, l.Span.Start.Line, l.Span.Start.Column, l.Name)
		}
	case "json":
		return export.WriteJSON(w, export.FromScript(path, f))
	case "none":
	default:
		return fmt.Errorf("unknown output %q", output)
	}
	return nil
}

func countStatements(f *script.SourceFile) int {
	n := 0
	script.Walk(f, func(script.Statement, int) bool {
		n++
		return true
	})
	return n
}

func newTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file> | -",
		Short: "Dump the token stream of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.crash.File = args[0]
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			toks, err := script.Tokens(src, a.cfg.Parser.ScriptOptions()...)
			for _, t := range toks {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.String())
			}
			var se *script.Error
			if errors.As(err, &se) {
				return errors.New(se.Snippet(src))
			}
			return err
		},
	}
}
