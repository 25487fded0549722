/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command gorenpy parses, indexes and searches visual novel scripts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gorenpy/internal/config"
	"gorenpy/internal/crash"
	applog "gorenpy/internal/log"
	"gorenpy/internal/storage"
	"gorenpy/internal/telemetry"
	"gorenpy/internal/version"
)

// app carries what every command shares: the loaded config, the project root
// and what a crash report should mention.
type app struct {
	cfg      config.AppConfig
	dsn      string
	root     string
	logLevel string
	crash    crash.Context
}

func main() {
	a := &app{}
	defer crash.RecoverFunc(func() crash.Context { return a.crash })

	err := newRootCmd(a).ExecuteContext(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Shutdown(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gorenpy",
		Short:         "Parse, index and search Ren'Py-style scripts",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.crash.Command = strings.TrimSpace("gorenpy " + cmd.Name() + " " + strings.Join(args, " "))
			return a.setup()
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&a.root, "project", "C", ".", "Project root directory")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newParseCmd(a),
		newTokensCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newPublishCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the user config and initializes logging and telemetry from it.
func (a *app) setup() error {
	cfg, dsn, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg, a.dsn = cfg, dsn
	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	applog.Init(applog.Options{Level: level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	telemetry.NewDefault(telemetry.FromEnv().Merge(cfg.General.TelemetryOptIn, cfg.General.TelemetryURL))
	applog.WithComponent("cli").Debug("start", slog.String("cmd", a.crash.Command))
	return nil
}

// project opens the project at the --project root, or at root when given.
func (a *app) project(root string) (*storage.Project, error) {
	if root == "" {
		root = a.root
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	p, err := storage.OpenProject(abs, a.cfg)
	if err != nil {
		return nil, err
	}
	a.crash.StateDir = p.StateDir
	return p, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// projectArg returns the optional positional project root.
func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
