/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	applog "gorenpy/internal/log"
	"gorenpy/internal/script"
	"gorenpy/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetData  PresetName = "data"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of a whole project.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <project>/exports/<preset>/.
//   - Trees are written per script as json/<path>.json and cbor/<path>.cbor, mirroring the project layout.
//   - PDF output is a single script.pdf holding every script in discovery order.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset   PresetName
	Formats  []string // allowed: json, cbor, pdf; empty means preset defaults
	Files    []string // project-relative scripts; empty means all
	OutDir   string
	Validate bool // check every JSON tree, and every CBOR tree read back, against the schema before writing
	PDF      PDFOptions
}

// BatchResult lists the files BatchExport wrote.
type BatchResult struct {
	OutDir  string
	Written []string
}

// BatchExport parses the project's scripts and writes them in the preset's formats.
// The first file that fails to parse stops the export with its *script.Error.
func BatchExport(ctx context.Context, p *storage.Project, opt BatchOptions) (BatchResult, error) {
	if p == nil {
		return BatchResult{}, fmt.Errorf("project is nil")
	}
	l := applog.WithOperation(applog.WithComponent("export"), "batch")

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	// normalize format strings
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
		switch formats[i] {
		case "json", "cbor", "pdf":
		default:
			return BatchResult{}, fmt.Errorf("unknown format: %s", formats[i])
		}
	}

	// Resolve output base directory
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = string(PresetData)
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(p.Root, "exports", baseOut)
	}
	res := BatchResult{OutDir: baseOut}

	files := opt.Files
	if len(files) == 0 {
		var err error
		if files, err = p.ScriptFiles(); err != nil {
			return res, err
		}
	}

	scripts := make([]Script, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		src, err := os.ReadFile(p.Abs(rel))
		if err != nil {
			return res, fmt.Errorf("read %s: %w", rel, err)
		}
		tree, err := script.Parse(src, p.Parser.ScriptOptions()...)
		if err != nil {
			l.WarnContext(applog.WithFile(ctx, rel), "parse failed", slog.Any("err", err))
			return res, fmt.Errorf("%s: %w", rel, err)
		}
		scripts = append(scripts, Script{File: rel, Tree: tree})
	}

	for _, f := range formats {
		switch f {
		case "json", "cbor":
			for _, s := range scripts {
				out := filepath.Join(baseOut, f, filepath.FromSlash(s.File)+"."+f)
				if err := writeTree(out, f, FromScript(s.File, s.Tree), opt.Validate); err != nil {
					return res, fmt.Errorf("%s %s: %w", f, s.File, err)
				}
				res.Written = append(res.Written, out)
			}
		case "pdf":
			out := filepath.Join(baseOut, "pdf", "script.pdf")
			po := opt.PDF
			if po.Title == "" {
				po.Title = filepath.Base(p.Root)
			}
			if err := ExportPDF(out, scripts, po); err != nil {
				return res, err
			}
			res.Written = append(res.Written, out)
		}
	}
	l.Info("export done", slog.String("out", baseOut), slog.Int("scripts", len(scripts)), slog.Int("written", len(res.Written)))
	return res, nil
}

func writeTree(out, format string, t Tree, validate bool) error {
	var (
		b   []byte
		err error
	)
	switch format {
	case "json":
		b, err = MarshalJSON(t)
		if err == nil && validate {
			err = Validate(b)
		}
	case "cbor":
		b, err = MarshalCBOR(t)
		if err == nil && validate {
			err = checkCBOR(b)
		}
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return os.WriteFile(out, b, 0o644)
}

// checkCBOR decodes an encoded tree and validates its JSON rendering.
func checkCBOR(b []byte) error {
	back, err := UnmarshalCBOR(b)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	j, err := MarshalJSON(back)
	if err != nil {
		return err
	}
	return Validate(j)
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetPrint:
		return []string{"pdf"}
	case PresetData:
		return []string{"json", "cbor"}
	default:
		return []string{"json"}
	}
}
