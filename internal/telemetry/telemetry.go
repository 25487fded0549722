/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry provides a tiny, opt‑in event sender for anonymous parse
// and index counts and optional crash uploads. Script text, paths and label
// names never leave the machine.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "gorenpy/internal/log"
	"gorenpy/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt‑in and disabled by default.
//
// Environment variables (read by FromEnv):
// - GRP_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable events
// - GRP_TELEMETRY_URL: URL to POST JSON events to
// - GRP_CRASH_UPLOAD_URL: URL to POST crash reports to
// - GRP_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
// - GRP_TELEMETRY_DEBUG: if set, send attempts are logged at debug level
//
// Without a URL nothing is sent, even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

const (
	defaultTimeout = 1500 * time.Millisecond
	queueSize      = 64
	flushWait      = 500 * time.Millisecond
)

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GRP_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GRP_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GRP_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("GRP_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("GRP_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// Merge fills the fields the environment left unset from the config file
// values. The environment always wins.
func (cfg Config) Merge(optIn bool, eventsURL string) Config {
	if !cfg.OptIn && optIn {
		cfg.OptIn = true
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = strings.TrimSpace(eventsURL)
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// ParseStats is the anonymous summary attached to a "parse", "index" or
// "watch" event.
type ParseStats struct {
	Files      int
	Statements int
	Errors     int
	Skipped    int
	Elapsed    time.Duration
}

// event is the JSON body of one POST. It holds counts only.
type event struct {
	Name       string `json:"name"`
	TS         string `json:"ts"`
	Version    string `json:"version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Files      int    `json:"files"`
	Statements int    `json:"statements"`
	Errors     int    `json:"errors"`
	Skipped    int    `json:"skipped"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

// Client sends events from a bounded queue on a background goroutine.
// Callers never block and failures are dropped.
type Client struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client
	q    chan event

	inflight atomic.Int64 // queued events and running crash uploads
	ctx      context.Context
	stop     context.CancelFunc
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault creates the package‑level client from the environment on first use.
func InitDefault() {
	defaultOnce.Do(func() {
		defaultClient = New(FromEnv())
	})
}

// NewDefault creates and installs the default client with cfg. Later
// InitDefault calls keep it.
func NewDefault(cfg Config) {
	defaultOnce.Do(func() {})
	defaultClient = New(cfg)
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	ctx, stop := context.WithCancel(context.Background())
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		http: &http.Client{Timeout: cfg.Timeout},
		q:    make(chan event, queueSize),
		ctx:  ctx,
		stop: stop,
	}
	go c.loop()
	return c
}

// Enabled reports whether the user opted in and an events URL is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports Enabled for the default client.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Parsed queues the summary of a parse run under name. A full queue drops it.
func (c *Client) Parsed(name string, s ParseStats) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := event{
		Name:       name,
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
		Version:    version.String(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Files:      s.Files,
		Statements: s.Statements,
		Errors:     s.Errors,
		Skipped:    s.Skipped,
		ElapsedMS:  s.Elapsed.Milliseconds(),
	}
	c.inflight.Add(1)
	select {
	case c.q <- ev:
	default:
		c.inflight.Add(-1)
	}
}

// Parsed using the default client.
func Parsed(name string, s ParseStats) { InitDefault(); defaultClient.Parsed(name, s) }

// UploadCrash posts a crash report to the crash URL in the background when
// the user opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.inflight.Add(1)
	go func(b []byte) {
		defer c.inflight.Add(-1)
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash")
	}(append([]byte(nil), report...))
}

// UploadCrash using the default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }

// Flush waits until queued events and crash uploads are done, ctx ends, or a
// short grace period passes.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	grace := time.NewTimer(flushWait)
	defer grace.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for c.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-grace.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the sender and aborts requests still in flight.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.stop()
}

// Shutdown flushes and closes the default client if one was created.
func Shutdown(ctx context.Context) {
	if defaultClient == nil {
		return
	}
	defaultClient.Flush(ctx)
	defaultClient.Close()
}

func (c *Client) loop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.q:
			if body, err := json.Marshal(ev); err == nil {
				c.post(c.cfg.EventsURL, "application/json", body, ev.Name)
			}
			c.inflight.Add(-1)
		}
	}
}

// post sends one request; what names it in debug logs.
func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.debug("telemetry request invalid", what, slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		c.debug("telemetry send failed", what, slog.Any("err", err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		c.debug("telemetry endpoint refused", what, slog.Int("status", resp.StatusCode))
		return
	}
	c.debug("telemetry sent", what)
}

func (c *Client) debug(msg, what string, attrs ...any) {
	if !c.cfg.DebugLogging {
		return
	}
	c.log.Debug(msg, append([]any{slog.String("event", what)}, attrs...)...)
}
