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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(file, ts, hash, text) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT id, file, ts, hash, text FROM script_snapshots WHERE file = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const selectScriptSnapshotSQL = `SELECT id, file, ts, hash, text FROM script_snapshots WHERE id = ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE file = ? AND id NOT IN (
	SELECT id FROM script_snapshots WHERE file = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// snapshotTimeLayout has fixed-width fractions so stored timestamps sort as text.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ScriptSnapshot is one stored version of a script file.
type ScriptSnapshot struct {
	ID   int64
	File string
	TS   time.Time
	Hash string
	Text string
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// saveScriptSnapshot records text for file. The indexer calls it inside its
// transaction whenever a file's hash changes.
func saveScriptSnapshot(ctx context.Context, ex execer, file, hash string, text []byte, ts time.Time) error {
	_, err := ex.ExecContext(ctx, insertScriptSnapshotSQL, file, ts.UTC().Format(snapshotTimeLayout), hash, string(text))
	return err
}

// ListScriptSnapshots returns up to limit most recent versions of file, newest first.
func ListScriptSnapshots(ctx context.Context, p *Project, file string, limit int) ([]ScriptSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listScriptSnapshotsSQL, file, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestScriptSnapshot returns the newest version of file; ok is false when none exists.
func LatestScriptSnapshot(ctx context.Context, p *Project, file string) (ScriptSnapshot, bool, error) {
	list, err := ListScriptSnapshots(ctx, p, file, 1)
	if err != nil || len(list) == 0 {
		return ScriptSnapshot{}, false, err
	}
	return list[0], true, nil
}

// PruneOldScriptSnapshots keeps at most keepLast versions of file and deletes older ones.
func PruneOldScriptSnapshots(ctx context.Context, p *Project, file string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, file, file, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RestoreScriptSnapshot writes the snapshot with the given id back to its file.
// The current file, if any, is copied to the backups directory first. It returns
// the restored file's path.
func RestoreScriptSnapshot(ctx context.Context, p *Project, id int64) (string, error) {
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return "", err
	}
	s, err := scanSnapshot(db.QueryRowContext(ctx, selectScriptSnapshotSQL, id))
	_ = db.Close()
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("snapshot %d not found", id)
	}
	if err != nil {
		return "", err
	}
	path := p.Abs(s.File)
	if _, err := os.Stat(path); err == nil {
		stamp := time.Now().Format("20060102-150405")
		bak := filepath.Join(p.StateDir, BackupsDirName, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if err := copyFile(path, bak); err != nil {
			return "", fmt.Errorf("backup current script: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, []byte(s.Text)); err != nil {
		return "", err
	}
	return path, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (ScriptSnapshot, error) {
	var s ScriptSnapshot
	var ts string
	if err := r.Scan(&s.ID, &s.File, &ts, &s.Hash, &s.Text); err != nil {
		return s, err
	}
	// Keep the text even if the timestamp is unreadable.
	s.TS, _ = time.Parse(snapshotTimeLayout, ts)
	return s, nil
}
