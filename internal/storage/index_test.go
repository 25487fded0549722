/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openRawIndex(tb testing.TB, p *Project) *sql.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(p.IndexPath()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	p := newTestProject(t, nil)
	db, err := InitOrOpenIndex(p)
	if err != nil {
		t.Fatalf("InitOrOpenIndex error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(p.IndexPath()); err != nil {
		t.Fatalf("index file missing at %s: %v", p.IndexPath(), err)
	}

	raw := openRawIndex(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := raw.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 meta tables, got %d", cnt)
	}
	if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('files','documents','fts_documents','parse_errors','script_snapshots')").Scan(&cnt); err != nil {
		t.Fatalf("query core tables: %v", err)
	}
	if cnt != 5 {
		t.Fatalf("expected 5 core tables, got %d", cnt)
	}
	var schema int
	if err := raw.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil || schema != schemaVersion {
		t.Fatalf("schema = %d (%v), want %d", schema, err, schemaVersion)
	}
	// FTS triggers populate the index from documents.
	if _, err := raw.ExecContext(ctx, `INSERT INTO documents(file, kind, name, scope, line, col, text) VALUES('game/a.rpy','say','e','start',3,5,'hello world')`); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	var ftsCount int
	if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_documents WHERE fts_documents MATCH 'hello'").Scan(&ftsCount); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if ftsCount != 1 {
		t.Fatalf("expected FTS to find inserted document, got %d", ftsCount)
	}
	if _, err := raw.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		t.Fatalf("delete documents: %v", err)
	}
	if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_documents WHERE fts_documents MATCH 'hello'").Scan(&ftsCount); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if ftsCount != 0 {
		t.Fatalf("delete trigger left %d fts rows", ftsCount)
	}
}

func TestInitOrOpenIndexRequiresProject(t *testing.T) {
	if _, err := InitOrOpenIndex(nil); err == nil {
		t.Fatalf("expected error for nil project")
	}
}

// TestMigrations_UpgradeV1ToV2 ensures that an older DB (schema=1) is migrated to schemaVersion and new indexes exist.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	p := newTestProject(t, nil)
	if err := p.EnsureStateDir(); err != nil {
		t.Fatal(err)
	}
	raw := openRawIndex(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS documents (doc_id INTEGER PRIMARY KEY, file TEXT NOT NULL, kind TEXT NOT NULL, name TEXT NOT NULL DEFAULT '', scope TEXT NOT NULL DEFAULT '', line INTEGER NOT NULL, col INTEGER NOT NULL, text TEXT NOT NULL DEFAULT '');`,
	}
	for _, q := range stmts {
		if _, err := raw.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1: %v", err)
		}
	}
	_ = raw.Close()

	db, err := InitOrOpenIndex(p)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	var schema int
	if err := db.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name IN ('idx_documents_kind_name','idx_script_snapshots_file_ts')").Scan(&n); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 migration indexes, got %d", n)
	}
}

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	p := newTestProject(t, map[string]string{"game/script.rpy": demoScript})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := IndexProject(ctx, p, IndexOptions{}); err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, p, IndexOptions{})
	if err != nil || rebuilt {
		t.Fatalf("healthy index should not be rebuilt: %v %v", rebuilt, err)
	}

	removeIndexFiles(p.IndexPath())
	if err := os.WriteFile(p.IndexPath(), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err = DetectAndRebuildIndex(ctx, p, IndexOptions{})
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	res, err := Search(ctx, p, SearchQuery{Kinds: []string{DocLabel}})
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 labels after rebuild, got %d", len(res))
	}
	entries, _ := os.ReadDir(filepath.Join(p.StateDir, BackupsDirName))
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", filepath.Join(p.StateDir, BackupsDirName))
	}
}
