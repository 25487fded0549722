/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in a CLI command into a report file and a
// non-zero exit.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "gorenpy/internal/log"
	"gorenpy/internal/telemetry"
	"gorenpy/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// ReportsDirName is the subdirectory of a project's state dir holding crash reports.
const ReportsDirName = "crash"

// Context is what a report knows about the run that crashed.
// StateDir is the project's state directory; empty means the OS temp dir.
// Command is the CLI command line, File the script being processed if any.
type Context struct {
	StateDir string
	Command  string
	File     string
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file and exits with code 2.
//
// Usage: defer crash.Recover(crash.Context{StateDir: p.StateDir})
func Recover(c Context) {
	if r := recover(); r != nil {
		report(c, r)
	}
}

// RecoverFunc is Recover for callers that learn the context after deferring,
// like a CLI that opens its project inside the command.
//
// Usage: defer crash.RecoverFunc(func() crash.Context { return cc })
func RecoverFunc(get func() Context) {
	if r := recover(); r != nil {
		report(get(), r)
	}
}

func report(c Context, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(c, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	// give an opted-in crash upload its flush window before exiting
	telemetry.Shutdown(context.Background())
	exitFn(2)
}

func writeReport(c Context, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if c.StateDir != "" {
		dir = filepath.Join(c.StateDir, ReportsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "gorenpy Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if c.Command != "" {
		_, _ = fmt.Fprintf(&buf, "Command: %s\n", c.Command)
	}
	if c.StateDir != "" {
		_, _ = fmt.Fprintf(&buf, "StateDir: %s\n", c.StateDir)
	}
	if c.File != "" {
		_, _ = fmt.Fprintf(&buf, "File: %s\n", c.File)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	// write to file
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// optionally upload anonymized crash report (opt-in via env)
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
