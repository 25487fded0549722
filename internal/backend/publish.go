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
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	applog "gorenpy/internal/log"
	"gorenpy/internal/storage"
)

// Publication describes the project row after a publish.
type Publication struct {
	ProjectID int64
	Version   int64
	Documents int64
}

var documentColumns = []string{"project_id", "file", "kind", "name", "scope", "line", "col", "raw_text"}

// language=SQL
// dialect=PostgreSQL
const upsertProjectSQL = `INSERT INTO projects(name, version, files, updated_at) VALUES ($1, 1, $2, now())
	ON CONFLICT(name) DO UPDATE SET version = projects.version + 1, files = excluded.files, updated_at = now()
	RETURNING id, version`

// PublishDocuments replaces the published documents of project with docs. The
// project row, the delete and the bulk copy share one transaction, so searches
// see either the old set or the new one.
func PublishDocuments(ctx context.Context, db *sql.DB, project string, docs []storage.Document) (Publication, error) {
	if project == "" {
		return Publication{}, errors.New("project name is required")
	}
	l := applog.WithOperation(applog.WithComponent("backend"), "publish").With(slog.String("project", project))
	files := map[string]struct{}{}
	for _, d := range docs {
		files[d.File] = struct{}{}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return Publication{}, fmt.Errorf("acquire conn: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var pub Publication
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		pc := sc.Conn()
		tx, err := pc.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := tx.QueryRow(ctx, upsertProjectSQL, project, len(files)).Scan(&pub.ProjectID, &pub.Version); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE project_id = $1`, pub.ProjectID); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"documents"}, documentColumns,
			pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
				d := docs[i]
				return []any{pub.ProjectID, d.File, d.Kind, d.Name, d.Scope, int32(d.Line), int32(d.Col), d.Text}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy documents: %w", err)
		}
		pub.Documents = n
		return tx.Commit(ctx)
	})
	if err != nil {
		l.Error("publish failed", slog.Any("err", err))
		return Publication{}, err
	}
	l.Info("published", slog.Int64("version", pub.Version), slog.Int64("documents", pub.Documents))
	return pub, nil
}

// PublishProject copies the local index of p to the shared database under name.
func PublishProject(ctx context.Context, db *sql.DB, p *storage.Project, name string) (Publication, error) {
	docs, err := storage.AllDocuments(ctx, p)
	if err != nil {
		return Publication{}, err
	}
	return PublishDocuments(ctx, db, name, docs)
}
