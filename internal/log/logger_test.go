/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

// lastJSON decodes the last non-empty line of b.
func lastJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestConsoleLineLayout(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Level: "debug"}).With(slog.String("component", "storage"), slog.String("op", "parse"))
	ctx := WithFile(context.Background(), "game/script.rpy")
	l.WarnContext(ctx, "parse failed", slog.Any("err", errors.New("unexpected token")), slog.Int("line", 4))

	re := regexp.MustCompile(`^\d\d:\d\d:\d\d\.\d{3} WRN storage/parse game/script\.rpy: parse failed err="unexpected token" line=4\n$`)
	if !re.MatchString(buf.String()) {
		t.Fatalf("unexpected console line: %q", buf.String())
	}
}

func TestConsoleWithoutFileOrTag(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{}).Info("index done", slog.Int("files", 2), slog.Duration("took", 1500*time.Millisecond))
	out := buf.String()
	if !strings.Contains(out, " INF index done files=2 took=1.5s\n") {
		t.Fatalf("unexpected console line: %q", out)
	}
}

func TestConsoleGroupsPrefixLaterKeys(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{}).With(slog.String("root", "/tmp/game"))
	l.WithGroup("stats").Info("done", slog.Int("files", 3), slog.Group("errs", slog.Int("lex", 1)))
	out := buf.String()
	for _, want := range []string{"root=/tmp/game", "stats.files=3", "stats.errs.lex=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "stats.root") {
		t.Fatalf("group applied to an earlier attr: %q", out)
	}

	// a file attribute inside a group is an ordinary key
	buf.Reset()
	l.WithGroup("g").InfoContext(WithFile(context.Background(), "a.rpy"), "x")
	if !strings.Contains(buf.String(), " g.file=a.rpy") || strings.Contains(buf.String(), "a.rpy: ") {
		t.Fatalf("grouped file attr: %q", buf.String())
	}
}

func TestLevelNames(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
		"loud":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	var buf bytes.Buffer
	l := New(&buf, Options{Level: "warn"})
	l.Info("hidden")
	l.Error("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "ERR shown") {
		t.Fatalf("level filter: %q", buf.String())
	}
}

// The rotated file gets JSON with the static attrs, the tag and the script path,
// while the console keeps its own layout.
func TestFileLogCarriesScriptPath(t *testing.T) {
	// a file in the system temp dir avoids removing a still-open handle on Windows
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("grp_log_%d.json", time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(fpath) })

	var console bytes.Buffer
	InitWriter(&console, Options{Level: "debug", File: fpath})
	t.Cleanup(func() { Init(Options{}) })

	ctx := WithFile(context.Background(), "game/script.rpy")
	WithOperation(WithComponent("index"), "parse").InfoContext(ctx, "parsed", slog.Int("statements", 3))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSON(t, b)
	if m["app"] != "gorenpy" {
		t.Fatalf("app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr: %v", m)
	}
	if m[FileKey] != "game/script.rpy" || m["component"] != "index" || m["op"] != "parse" {
		t.Fatalf("unexpected record: %v", m)
	}
	if m["statements"] != float64(3) || m["msg"] != "parsed" {
		t.Fatalf("record body: %v", m)
	}
	if !strings.Contains(console.String(), "INF index/parse game/script.rpy: parsed statements=3") {
		t.Fatalf("console line: %q", console.String())
	}
}

func TestJSONConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Options{Format: "json"})
	t.Cleanup(func() { Init(Options{}) })

	L().InfoContext(WithFile(context.Background(), "b.rpy"), "hello")
	m := lastJSON(t, buf.Bytes())
	if m["msg"] != "hello" || m[FileKey] != "b.rpy" || m["app"] != "gorenpy" {
		t.Fatalf("unexpected record: %v", m)
	}
	if slog.Default() != L() {
		t.Fatalf("InitWriter should install the logger as slog default")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GRP_LOG_LEVEL", "warn")
	t.Setenv("GRP_LOG_FORMAT", "json")
	t.Setenv("GRP_LOG_SOURCE", "true")
	t.Setenv("GRP_LOG_FILE", " /var/log/gorenpy.json ")

	opts := FromEnv()
	want := Options{Level: "warn", Format: "json", AddSource: true, File: "/var/log/gorenpy.json"}
	if opts != want {
		t.Fatalf("FromEnv = %+v, want %+v", opts, want)
	}

	t.Setenv("GRP_LOG_SOURCE", "maybe")
	if FromEnv().AddSource {
		t.Fatalf("unparsable GRP_LOG_SOURCE should leave source off")
	}
}

func TestFileFrom(t *testing.T) {
	if _, ok := FileFrom(context.Background()); ok {
		t.Fatalf("FileFrom on a bare context should report false")
	}
	if _, ok := FileFrom(WithFile(context.Background(), "")); ok {
		t.Fatalf("an empty path is not a file")
	}
	if p, ok := FileFrom(WithFile(context.Background(), "c.rpy")); !ok || p != "c.rpy" {
		t.Fatalf("FileFrom = %q, %v", p, ok)
	}
}
