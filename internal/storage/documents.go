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
	"fmt"
	"strings"

	"gorenpy/internal/script"
)

// Document kinds stored in the index.
const (
	DocLabel   = "label"
	DocMenu    = "menu"
	DocSay     = "say"
	DocChoice  = "choice"
	DocJump    = "jump"
	DocCall    = "call"
	DocDefine  = "define"
	DocDefault = "default"
	DocImage   = "image"
	DocShow    = "show"
	DocScene   = "scene"
)

// Document is one searchable fact taken from a parsed script.
//
// Name depends on Kind: the qualified label name for labels and named menus,
// the speaker for dialogue, the qualified target for jumps and calls, the
// variable for define/default and the space-joined image name for image, show
// and scene. Scope is the nearest enclosing global label. Text is what full-text
// search matches against.
type Document struct {
	File  string `json:"file"`
	Kind  string `json:"kind"`
	Name  string `json:"name,omitempty"`
	Scope string `json:"scope,omitempty"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Text  string `json:"text,omitempty"`
}

// Extract lists the documents of a parsed file in source order.
func Extract(file string, f *script.SourceFile) []Document {
	if f == nil {
		return nil
	}
	var out []Document
	extractList(file, f.Statements, "", &out)
	return out
}

func extractList(file string, stmts []script.Statement, scope string, out *[]Document) {
	for _, s := range stmts {
		at := s.Pos().Start
		doc := func(kind, name, text string) {
			*out = append(*out, Document{File: file, Kind: kind, Name: name, Scope: scope, Line: at.Line, Col: at.Column, Text: text})
		}
		inner := scope
		switch st := s.(type) {
		case *script.Label:
			name := qualify(st.Name, scope)
			doc(DocLabel, name, name)
			inner = globalPart(st.Name, scope)
		case *script.Say:
			doc(DocSay, st.Who, st.What.Value)
		case *script.Menu:
			if st.Name != nil {
				doc(DocMenu, qualify(*st.Name, scope), "")
			}
			if st.Prompt != nil {
				p := st.Prompt.Span.Start
				*out = append(*out, Document{File: file, Kind: DocSay, Name: st.Prompt.Who, Scope: scope, Line: p.Line, Col: p.Column, Text: st.Prompt.What.Value})
			}
			for _, c := range st.Choices {
				cp := c.Span.Start
				*out = append(*out, Document{File: file, Kind: DocChoice, Scope: scope, Line: cp.Line, Col: cp.Column, Text: c.Text.Value})
				extractList(file, c.Body.Statements, scope, out)
			}
			continue
		case *script.Jump:
			doc(DocJump, qualify(st.Target, scope), st.Target.String())
		case *script.Call:
			doc(DocCall, qualify(st.Target, scope), st.Target.String())
		case *script.Define:
			doc(DocDefine, st.Name, st.Value.Text)
		case *script.Default:
			doc(DocDefault, st.Name, st.Value.Text)
		case *script.Image:
			name := strings.Join(st.Names, " ")
			doc(DocImage, name, name)
		case *script.Show:
			name := strings.Join(st.Image.Names, " ")
			doc(DocShow, name, name)
		case *script.Scene:
			if st.Image != nil {
				name := strings.Join(st.Image.Names, " ")
				doc(DocScene, name, name)
			}
		}
		for _, b := range script.Children(s) {
			extractList(file, b.Statements, inner, out)
		}
	}
}

// qualify spells a local name out with the enclosing global label. It does not
// check that the label exists.
func qualify(n script.LabelName, scope string) string {
	if n.Local && scope != "" {
		return scope + "." + n.Name
	}
	return n.String()
}

// globalPart returns the global label that scopes the body of a label named n.
func globalPart(n script.LabelName, scope string) string {
	switch {
	case n.Local:
		return scope
	case n.Scope != "":
		return n.Scope
	}
	return n.Name
}

// AllDocuments returns every indexed document ordered by file and position.
func AllDocuments(ctx context.Context, p *Project) ([]Document, error) {
	db, err := InitOrOpenIndex(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, `SELECT file, kind, name, scope, line, col, text FROM documents ORDER BY file, line, col, doc_id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.File, &d.Kind, &d.Name, &d.Scope, &d.Line, &d.Col, &d.Text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
