/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorenpy/internal/config"
)

const (
	// DefaultStateDir holds the index, backups and crash reports under the project root.
	DefaultStateDir = ".gorenpy"
	BackupsDirName  = "backups"
)

// Project describes a script tree on disk.
// Root is absolute. StateDir is where the index and backups live; it is skipped
// during discovery. Parser carries the scanner settings and script extensions.
type Project struct {
	Root     string
	StateDir string
	Parser   config.ParserConfig
}

// OpenProject validates root and returns a Project using the parser and index
// sections of cfg. It does not touch the index.
func OpenProject(root string, cfg config.AppConfig) (*Project, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open project root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", abs)
	}
	dir := strings.TrimSpace(cfg.Index.Dir)
	if dir == "" {
		dir = DefaultStateDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(abs, dir)
	}
	parser := cfg.Parser
	if len(parser.Extensions) == 0 {
		parser.Extensions = config.Defaults().Parser.Extensions
	}
	return &Project{Root: abs, StateDir: dir, Parser: parser}, nil
}

// EnsureStateDir creates the state directory if needed.
func (p *Project) EnsureStateDir() error {
	if err := os.MkdirAll(filepath.Join(p.StateDir, BackupsDirName), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

// Rel returns path relative to the project root in slash form. Paths outside
// the root are returned cleaned but otherwise unchanged.
func (p *Project) Rel(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	rel, err := filepath.Rel(p.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a slash-separated project path back to the file system.
func (p *Project) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// ScriptFiles lists the script files under the root as sorted, slash-separated
// relative paths. Hidden directories and the state directory are skipped.
func (p *Project) ScriptFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == p.Root {
				return nil
			}
			if path == p.StateDir || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !p.Parser.HasExt(path) {
			return nil
		}
		out = append(out, p.Rel(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scripts: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it over
// the target, keeping a readable file in place if the write fails.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
