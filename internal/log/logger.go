/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the slog logger shared by the gorenpy packages.
//
// Records go to a console handler (or JSON when asked) and, when a log file is
// configured, to a rotated JSON file as well. Loggers carry a component and an
// operation; a context built with WithFile adds the script being processed.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"gorenpy/internal/version"
)

// Options controls logger initialization. FromEnv reads them from
// GRP_LOG_LEVEL, GRP_LOG_FORMAT, GRP_LOG_SOURCE and GRP_LOG_FILE.
type Options struct {
	Level     string // slog level name; "warning" is accepted for warn
	Format    string // "console" (default) or "json"
	AddSource bool
	File      string // optional JSON log file, rotated by size
}

// FileKey is the attribute that names the script a record is about.
const FileKey = "file"

const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

var (
	rootMu sync.RWMutex
	root   *slog.Logger
)

// L returns the installed logger, initializing it from the environment on first use.
func L() *slog.Logger {
	rootMu.RLock()
	l := root
	rootMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Init installs a logger writing to stderr and makes it slog's default.
func Init(opts Options) {
	InitWriter(os.Stderr, opts)
}

// InitWriter is Init with the console output sent to w.
func InitWriter(w io.Writer, opts Options) {
	l := New(w, opts)
	rootMu.Lock()
	root = l
	rootMu.Unlock()
	slog.SetDefault(l)
}

// New builds a logger without installing it.
func New(w io.Writer, opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), AddSource: opts.AddSource}
	static := []slog.Attr{slog.String("app", "gorenpy"), slog.String("ver", version.Version)}

	var hs fanout
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		hs = append(hs, slog.NewJSONHandler(w, ho).WithAttrs(static))
	} else {
		hs = append(hs, newConsoleHandler(w, ho))
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		fw := &lj.Logger{Filename: path, MaxSize: fileMaxSizeMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxAgeDays, Compress: true}
		hs = append(hs, slog.NewJSONHandler(fw, ho).WithAttrs(static))
	}

	var h slog.Handler = hs
	if len(hs) == 1 {
		h = hs[0]
	}
	return slog.New(scriptFile{next: h})
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     os.Getenv("GRP_LOG_LEVEL"),
		Format:    os.Getenv("GRP_LOG_FORMAT"),
		AddSource: parseBool(os.Getenv("GRP_LOG_SOURCE")),
		File:      strings.TrimSpace(os.Getenv("GRP_LOG_FILE")),
	}
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && v
}

// parseLevel accepts the slog level names (any case, with +N/-N offsets).
// Anything else is info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithComponent returns a logger tagged with the package or subsystem name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with the operation in progress.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type fileKey struct{}

// WithFile returns a context that makes every record logged through it carry a
// "file" attribute naming the script being processed.
func WithFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, fileKey{}, path)
}

// FileFrom returns the script path stored by WithFile.
func FileFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	p, ok := ctx.Value(fileKey{}).(string)
	return p, ok && p != ""
}

// scriptFile copies the path stored by WithFile onto each record.
type scriptFile struct{ next slog.Handler }

func (s scriptFile) Enabled(ctx context.Context, l slog.Level) bool { return s.next.Enabled(ctx, l) }

func (s scriptFile) Handle(ctx context.Context, r slog.Record) error {
	if p, ok := FileFrom(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String(FileKey, p))
	}
	return s.next.Handle(ctx, r)
}

func (s scriptFile) WithAttrs(as []slog.Attr) slog.Handler {
	return scriptFile{next: s.next.WithAttrs(as)}
}

func (s scriptFile) WithGroup(name string) slog.Handler {
	return scriptFile{next: s.next.WithGroup(name)}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// consoleHandler writes one line per record:
//
//	14:03:07.512 WRN storage/parse game/script.rpy: parse failed err="unexpected token"
//
// The component and op attributes form the tag and a top-level file attribute
// becomes the location prefix. Group names prefix the keys that follow them.
type consoleHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	source bool

	component string
	op        string
	attrs     []slog.Attr
	prefix    string
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	return &consoleHandler{w: w, mu: &sync.Mutex{}, level: opts.Level, source: opts.AddSource}
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	floor := slog.LevelInfo
	if h.level != nil {
		floor = h.level.Level()
	}
	return l >= floor
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	if h.component != "" {
		b.WriteByte(' ')
		b.WriteString(h.component)
		if h.op != "" {
			b.WriteByte('/')
			b.WriteString(h.op)
		}
	}

	var file string
	rest := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == FileKey && h.prefix == "" {
			file = a.Value.String()
		} else {
			rest = append(rest, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
		}
		return true
	})
	b.WriteByte(' ')
	if file != "" {
		b.WriteString(file)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	for _, a := range rest {
		writeAttr(&b, a)
	}
	if h.source && r.PC != 0 {
		fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		_, _ = fmt.Fprintf(&b, " src=%s:%d", filepath.Base(fr.File), fr.Line)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(as []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range as {
		switch {
		case h.prefix == "" && a.Key == "component":
			c.component = a.Value.String()
		case h.prefix == "" && a.Key == "op":
			c.op = a.Value.String()
		default:
			c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
		}
	}
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := a.Key
		if prefix != "" {
			prefix += "."
		}
		for _, g := range a.Value.Group() {
			writeAttr(b, slog.Attr{Key: prefix + g.Key, Value: g.Value})
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(consoleValue(a.Value))
}

// consoleValue formats v, quoting it when it would not read back as one token.
func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	}
	return l.String()
}
