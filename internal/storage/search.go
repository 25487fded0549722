/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes a search over the indexed documents.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Kinds restricts to document kinds such as say, label, jump or define.
// Name matches the document name exactly, case-insensitively (a speaker, label or variable).
// File is a path prefix; Scope is the enclosing global label.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Kinds  []string
	Name   string
	File   string
	Scope  string
	Limit  int
	Offset int
}

// SearchResult represents a single match row.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	DocID   int64
	Kind    string
	Name    string
	Scope   string
	File    string
	Line    int
	Col     int
	Text    string
	Snippet string
}

// Location renders the result as file:line:col.
func (r SearchResult) Location() string { return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col) }

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with filters applied.
func Search(ctx context.Context, p *Project, q SearchQuery) ([]SearchResult, error) {
	if p == nil {
		return nil, errors.New("project is required")
	}
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return searchDB(ctx, db, q)
}

const resultColumns = "d.doc_id, d.kind, d.name, d.scope, d.file, d.line, d.col, d.text"

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT " + resultColumns + ", snippet(fts_documents, 1, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT " + resultColumns + ", ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if s := strings.TrimSpace(q.Name); s != "" {
		sb.WriteString(" AND lower(d.name) = ?\n")
		args = append(args, strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.File); s != "" {
		sb.WriteString(" AND d.file LIKE ? ESCAPE '\\'\n")
		args = append(args, likePrefix(s))
	}
	if s := strings.TrimSpace(q.Scope); s != "" {
		sb.WriteString(" AND d.scope = ?\n")
		args = append(args, s)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.file, d.line, d.col, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer func() { _ = rows.Close() }()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Kind, &r.Name, &r.Scope, &r.File, &r.Line, &r.Col, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WhereUsed returns the jump and call statements that target label. label is a
// qualified name (`scope.local`) or a global name; local targets were
// qualified with their enclosing label at index time.
func WhereUsed(ctx context.Context, p *Project, label string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(label) == "" {
		return nil, errors.New("label is required")
	}
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + resultColumns + `, ''
		FROM documents d
		WHERE d.kind IN ('jump', 'call') AND d.name = ?
		ORDER BY d.file, d.line, d.col, d.doc_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, strings.TrimSpace(label), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	return scanResults(rows)
}

// ParseError is the stored last failure of one script.
type ParseError struct {
	File    string
	Kind    string
	Reason  string
	Line    int
	Col     int
	Message string
}

func (e ParseError) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Col, e.Kind, e.Message)
}

// ParseErrors lists the files whose last index run failed to parse.
func ParseErrors(ctx context.Context, p *Project) ([]ParseError, error) {
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, `SELECT file, kind, reason, line, col, message FROM parse_errors ORDER BY file`)
	if err != nil {
		return nil, fmt.Errorf("list parse errors: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ParseError
	for rows.Next() {
		var e ParseError
		if err := rows.Scan(&e.File, &e.Kind, &e.Reason, &e.Line, &e.Col, &e.Message); err != nil {
			return nil, fmt.Errorf("scan parse error: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
