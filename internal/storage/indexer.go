/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	applog "gorenpy/internal/log"
	"gorenpy/internal/script"
)

// DefaultKeepSnapshots is how many text versions are kept per file.
const DefaultKeepSnapshots = 10

// IndexOptions tunes IndexProject.
// Workers bounds parallel parses (0 means GOMAXPROCS). Force reparses files whose
// hash did not change. KeepSnapshots caps the per-file history (0 means
// DefaultKeepSnapshots, negative disables snapshots).
type IndexOptions struct {
	Workers       int
	Force         bool
	KeepSnapshots int
}

// IndexStats summarizes one IndexProject run.
type IndexStats struct {
	Files      int // scripts discovered
	Parsed     int // scripts read and parsed this run
	Skipped    int // unchanged since the last run
	Failed     int // parsed with an error
	Removed    int // dropped because the file is gone
	Statements int
	Documents  int
	Elapsed    time.Duration
}

type fileResult struct {
	path       string
	hash       string
	size       int64
	text       []byte
	docs       []Document
	statements int
	perr       *script.Error
	skipped    bool
}

// HashContent returns the hex blake2b-256 digest used to detect changed files.
func HashContent(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IndexProject discovers the project's scripts, parses new or changed files in
// parallel and records their documents. A file that fails to parse has its old
// documents removed and its error stored; it does not stop the run. Read
// failures and database errors do.
func IndexProject(ctx context.Context, p *Project, opts IndexOptions) (IndexStats, error) {
	start := time.Now()
	l := applog.WithOperation(applog.WithComponent("storage"), "index").With(slog.String("root", p.Root))

	files, err := p.ScriptFiles()
	if err != nil {
		return IndexStats{}, err
	}
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return IndexStats{}, err
	}
	defer func() { _ = db.Close() }()

	known, err := loadFileHashes(ctx, db)
	if err != nil {
		return IndexStats{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			res, err := indexFile(gctx, p, rel, known[rel], opts.Force)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Error("index aborted", slog.Any("err", err))
		return IndexStats{}, err
	}

	stats, err := writeResults(ctx, db, results, known, opts.KeepSnapshots)
	if err != nil {
		l.Error("index write failed", slog.Any("err", err))
		return stats, err
	}
	stats.Elapsed = time.Since(start)
	l.Info("index updated",
		slog.Int("files", stats.Files),
		slog.Int("parsed", stats.Parsed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("removed", stats.Removed),
		slog.Int("documents", stats.Documents),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

func indexFile(ctx context.Context, p *Project, rel, prevHash string, force bool) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}
	src, err := os.ReadFile(p.Abs(rel))
	if err != nil {
		return fileResult{}, fmt.Errorf("read %s: %w", rel, err)
	}
	res := fileResult{path: rel, hash: HashContent(src), size: int64(len(src))}
	if !force && res.hash == prevHash {
		res.skipped = true
		return res, nil
	}
	res.text = src

	fctx := applog.WithFile(ctx, rel)
	l := applog.WithOperation(applog.WithComponent("storage"), "parse")
	tree, err := script.Parse(src, p.Parser.ScriptOptions()...)
	if err != nil {
		var se *script.Error
		if errors.As(err, &se) {
			res.perr = se
			l.WarnContext(fctx, "parse failed",
				slog.String("kind", se.Kind.String()),
				slog.Int("line", se.Line),
				slog.Int("col", se.Column),
				slog.String("msg", se.Message),
			)
			return res, nil
		}
		return res, fmt.Errorf("parse %s: %w", rel, err)
	}
	res.docs = Extract(rel, tree)
	script.Walk(tree, func(script.Statement, int) bool {
		res.statements++
		return true
	})
	l.DebugContext(fctx, "parsed", slog.Int("statements", res.statements), slog.Int("documents", len(res.docs)))
	return res, nil
}

func loadFileHashes(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, hash FROM files`)
	if err != nil {
		return nil, fmt.Errorf("read file hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]string{}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan file hash: %w", err)
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// language=SQL
// dialect=SQLite
const upsertFileSQL = `INSERT INTO files(path, hash, size, statements, indexed_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET hash=excluded.hash, size=excluded.size, statements=excluded.statements, indexed_at=excluded.indexed_at`

// language=SQL
// dialect=SQLite
const insertDocumentSQL = `INSERT INTO documents(file, kind, name, scope, line, col, text) VALUES (?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const insertParseErrorSQL = `INSERT INTO parse_errors(file, kind, reason, line, col, message) VALUES (?, ?, ?, ?, ?, ?)`

// writeResults applies one run in a single transaction so readers never see a
// half-updated index.
func writeResults(ctx context.Context, db *sql.DB, results []fileResult, known map[string]string, keep int) (IndexStats, error) {
	var stats IndexStats
	if keep == 0 {
		keep = DefaultKeepSnapshots
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	fail := func(what string, err error) (IndexStats, error) {
		_ = tx.Rollback()
		return stats, fmt.Errorf("%s: %w", what, err)
	}
	ins, err := tx.PrepareContext(ctx, insertDocumentSQL)
	if err != nil {
		return fail("prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	now := time.Now().UTC()
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.path] = true
		stats.Files++
		if r.skipped {
			stats.Skipped++
			continue
		}
		stats.Parsed++
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file=?`, r.path); err != nil {
			return fail("clear documents", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM parse_errors WHERE file=?`, r.path); err != nil {
			return fail("clear parse error", err)
		}
		if r.perr != nil {
			stats.Failed++
			e := r.perr
			if _, err := tx.ExecContext(ctx, insertParseErrorSQL, r.path, e.Kind.String(), string(e.Reason), e.Line, e.Column, e.Message); err != nil {
				return fail("insert parse error", err)
			}
		}
		for _, d := range r.docs {
			if _, err := ins.ExecContext(ctx, d.File, d.Kind, d.Name, d.Scope, d.Line, d.Col, d.Text); err != nil {
				return fail("insert document", err)
			}
		}
		stats.Documents += len(r.docs)
		stats.Statements += r.statements
		if _, err := tx.ExecContext(ctx, upsertFileSQL, r.path, r.hash, r.size, r.statements, now.Format(time.RFC3339Nano)); err != nil {
			return fail("upsert file", err)
		}
		if keep > 0 && known[r.path] != r.hash {
			if err := saveScriptSnapshot(ctx, tx, r.path, r.hash, r.text, now); err != nil {
				return fail("save snapshot", err)
			}
			if _, err := tx.ExecContext(ctx, pruneOldScriptSnapshotsSQL, r.path, r.path, keep); err != nil {
				return fail("prune snapshots", err)
			}
		}
	}
	for path := range known {
		if seen[path] {
			continue
		}
		for _, q := range []string{`DELETE FROM documents WHERE file=?`, `DELETE FROM parse_errors WHERE file=?`, `DELETE FROM files WHERE path=?`} {
			if _, err := tx.ExecContext(ctx, q, path); err != nil {
				return fail("remove file", err)
			}
		}
		stats.Removed++
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}
