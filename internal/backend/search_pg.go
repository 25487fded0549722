/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorenpy/internal/storage"
)

// SearchPG executes a search over the published documents of project using tsvector and filters
// and returns results mapped to storage.SearchResult to ease parity checks with the local index.
func SearchPG(ctx context.Context, db *sql.DB, project string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	const cols = "d.id, d.kind, d.name, d.scope, d.file, d.line, d.col, d.raw_text"
	if text := strings.TrimSpace(q.Text); text != "" {
		tq := "plainto_tsquery('simple', " + place(text) + ")"
		b.WriteString("SELECT " + cols + ", ")
		b.WriteString("COALESCE(ts_headline('simple', d.raw_text, " + tq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM documents d JOIN projects p ON p.id = d.project_id ")
		b.WriteString("WHERE d.search_vector @@ " + tq + " ")
	} else {
		b.WriteString("SELECT " + cols + ", '' ")
		b.WriteString("FROM documents d JOIN projects p ON p.id = d.project_id WHERE TRUE ")
	}
	b.WriteString(" AND p.name = " + place(project) + " ")

	if len(q.Kinds) > 0 {
		b.WriteString(" AND d.kind = ANY (" + place(q.Kinds) + ") ")
	}
	if s := strings.TrimSpace(q.Name); s != "" {
		b.WriteString(" AND lower(d.name) = " + place(strings.ToLower(s)) + " ")
	}
	if s := strings.TrimSpace(q.File); s != "" {
		b.WriteString(" AND d.file LIKE " + place(likePrefix(s)) + " ESCAPE '\\' ")
	}
	if s := strings.TrimSpace(q.Scope); s != "" {
		b.WriteString(" AND d.scope = " + place(s) + " ")
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.file, d.line, d.col, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Kind, &r.Name, &r.Scope, &r.File, &r.Line, &r.Col, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}
