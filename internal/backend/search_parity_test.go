/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorenpy/internal/config"
	"gorenpy/internal/storage"
)

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("GRP_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("postgres not configured (set GRP_PG_DSN)")
	}
	db, err := Open(context.Background(), dsn, 5*time.Second)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

const parityScript = `define e = Character("Eileen")
label start:
    e "Hello there, beach lover."
    menu:
        "Walk to the beach":
            jump .beach
        "Stay home":
            e "Maybe later."
label start.beach:
    scene bg beach
    call ending
`

func seedSQLiteProject(t *testing.T) *storage.Project {
	t.Helper()
	root := t.TempDir()
	for rel, text := range map[string]string{"game/script.rpy": parityScript, "game/ending.rpy": "label ending:\n    \"The end.\"\n    return\n"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	p, err := storage.OpenProject(root, config.Defaults())
	require.NoError(t, err)
	_, err = storage.IndexProject(context.Background(), p, storage.IndexOptions{})
	require.NoError(t, err)
	return p
}

func TestSearchParityWithLocalIndex(t *testing.T) {
	db := openPGForTest(t)
	p := seedSQLiteProject(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := fmt.Sprintf("parity-%d", time.Now().UnixNano())
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM projects WHERE name = $1`, name) })
	pub, err := PublishProject(ctx, db, p, name)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pub.Version)

	queries := []storage.SearchQuery{
		{Text: "eileen"},
		{Text: "later"},
		{Kinds: []string{storage.DocSay}},
		{Name: "E"},
		{File: "game/end"},
		{Scope: "start", Kinds: []string{storage.DocJump, storage.DocCall}},
		{Limit: 2, Offset: 1},
	}
	ignore := cmpopts.IgnoreFields(storage.SearchResult{}, "DocID", "Snippet")
	for _, q := range queries {
		local, err := storage.Search(ctx, p, q)
		require.NoError(t, err)
		remote, err := SearchPG(ctx, db, name, q)
		require.NoError(t, err)
		if diff := cmp.Diff(local, remote, ignore, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("query %+v mismatch (-sqlite +pg):\n%s", q, diff)
		}
	}
}

func TestPublishReplacesDocuments(t *testing.T) {
	db := openPGForTest(t)
	ctx := context.Background()
	name := fmt.Sprintf("replace-%d", time.Now().UnixNano())
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM projects WHERE name = $1`, name) })

	docs := []storage.Document{
		{File: "a.rpy", Kind: storage.DocLabel, Name: "start", Line: 1, Col: 1, Text: "start"},
		{File: "a.rpy", Kind: storage.DocSay, Name: "e", Scope: "start", Line: 2, Col: 5, Text: "Hi"},
	}
	pub, err := PublishDocuments(ctx, db, name, docs)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pub.Documents)

	pub2, err := PublishDocuments(ctx, db, name, docs[:1])
	require.NoError(t, err)
	assert.Equal(t, pub.ProjectID, pub2.ProjectID)
	assert.EqualValues(t, 2, pub2.Version)

	res, err := SearchPG(ctx, db, name, storage.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "start", res[0].Name)
}

func TestPublishRequiresName(t *testing.T) {
	_, err := PublishDocuments(context.Background(), nil, "", nil)
	assert.Error(t, err)
}

func TestOpenWithoutDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ", time.Second)
	assert.ErrorIs(t, err, ErrNoDSN)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/0001_init.sql")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	_, err = parseVersion("init.sql")
	assert.Error(t, err)
	_, err = parseVersion("x1_init.sql")
	assert.Error(t, err)
}

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_init.sql", files[0])
}
