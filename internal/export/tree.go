/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns parsed scripts into files for other tools: a generic
// node tree as JSON or CBOR, and a printable PDF of the script.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"gorenpy/internal/script"
)

// TreeFormat identifies exported documents.
const TreeFormat = "gorenpy-tree"

// TreeVersion is bumped whenever the node layout changes incompatibly.
const TreeVersion = 1

// Position is a 1-based line and byte column.
type Position struct {
	Line int `json:"line" cbor:"line"`
	Col  int `json:"col" cbor:"col"`
}

// Node is the generic form of one syntax element. Attrs holds the scalar
// fields of the element (speaker, target, condition text and so on); nested
// statements, branches, choices and image modifiers are Children.
type Node struct {
	Kind     string            `json:"kind" cbor:"kind"`
	Start    Position          `json:"start" cbor:"start"`
	End      Position          `json:"end" cbor:"end"`
	Attrs    map[string]string `json:"attrs,omitempty" cbor:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty" cbor:"children,omitempty"`
}

// Tree is an exported file.
type Tree struct {
	Format  string `json:"format" cbor:"format"`
	Version int    `json:"version" cbor:"version"`
	File    string `json:"file,omitempty" cbor:"file,omitempty"`
	Root    Node   `json:"root" cbor:"root"`
}

// FromScript converts a parsed file to its generic form.
func FromScript(file string, f *script.SourceFile) Tree {
	t := Tree{Format: TreeFormat, Version: TreeVersion, File: file}
	if f == nil {
		t.Root = Node{Kind: "file"}
		return t
	}
	t.Root = node("file", f.Span, nil, statements(f.Statements))
	return t
}

func node(kind string, sp script.Span, attrs map[string]string, children []Node) Node {
	return Node{
		Kind:     kind,
		Start:    Position{Line: sp.Start.Line, Col: sp.Start.Column},
		End:      Position{Line: sp.End.Line, Col: sp.End.Column},
		Attrs:    attrs,
		Children: children,
	}
}

func statements(stmts []script.Statement) []Node {
	out := make([]Node, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, statement(s))
	}
	return out
}

func block(kind string, b script.Block, attrs map[string]string) Node {
	return node(kind, b.Span, attrs, statements(b.Statements))
}

func statement(s script.Statement) Node {
	kind := s.Kind().String()
	switch st := s.(type) {
	case *script.Label:
		return node(kind, st.Span, map[string]string{"name": st.Name.String()}, statements(st.Body.Statements))
	case *script.Say:
		return node(kind, st.Span, sayAttrs(st), nil)
	case *script.Show:
		return node(kind, st.Span, imageAttrs(st.Image, st.With), modifiers(st.Image))
	case *script.Hide:
		return node(kind, st.Span, imageAttrs(st.Image, st.With), modifiers(st.Image))
	case *script.Scene:
		if st.Image == nil {
			return node(kind, st.Span, withAttr(nil, st.With), nil)
		}
		return node(kind, st.Span, imageAttrs(*st.Image, st.With), modifiers(*st.Image))
	case *script.With:
		return node(kind, st.Span, map[string]string{"transition": st.Transition.Text}, nil)
	case *script.If:
		kids := []Node{block("then", st.Body, map[string]string{"cond": st.Cond.Text})}
		for _, e := range st.Elifs {
			n := block("elif", e.Body, map[string]string{"cond": e.Cond.Text})
			n.Start = Position{Line: e.Span.Start.Line, Col: e.Span.Start.Column}
			kids = append(kids, n)
		}
		if st.Else != nil {
			kids = append(kids, block("else", *st.Else, nil))
		}
		return node(kind, st.Span, nil, kids)
	case *script.While:
		return node(kind, st.Span, map[string]string{"cond": st.Cond.Text}, statements(st.Body.Statements))
	case *script.Menu:
		var attrs map[string]string
		if st.Name != nil {
			attrs = map[string]string{"name": st.Name.String()}
		}
		var kids []Node
		if st.Prompt != nil {
			kids = append(kids, statement(st.Prompt))
		}
		for _, c := range st.Choices {
			ca := map[string]string{"text": c.Text.Value}
			if c.Cond != nil {
				ca["cond"] = c.Cond.Text
			}
			kids = append(kids, node("choice", c.Span, ca, statements(c.Body.Statements)))
		}
		return node(kind, st.Span, attrs, kids)
	case *script.Jump:
		return node(kind, st.Span, map[string]string{"target": st.Target.String()}, nil)
	case *script.Call:
		attrs := map[string]string{"target": st.Target.String()}
		if st.From != nil {
			attrs["from"] = st.From.String()
		}
		return node(kind, st.Span, attrs, nil)
	case *script.Return:
		if st.Value != nil {
			return node(kind, st.Span, map[string]string{"value": st.Value.Text}, nil)
		}
		return node(kind, st.Span, nil, nil)
	case *script.Pass:
		return node(kind, st.Span, nil, nil)
	case *script.Define:
		return node(kind, st.Span, map[string]string{"name": st.Name, "value": st.Value.Text}, nil)
	case *script.Default:
		return node(kind, st.Span, map[string]string{"name": st.Name, "value": st.Value.Text}, nil)
	case *script.Image:
		return node(kind, st.Span, map[string]string{"name": strings.Join(st.Names, " "), "value": st.Value.Text}, nil)
	}
	return node(kind, s.Pos(), nil, nil)
}

func sayAttrs(s *script.Say) map[string]string {
	attrs := map[string]string{"what": s.What.Value}
	if s.Who != "" {
		attrs["who"] = s.Who
	}
	if len(s.Attrs) > 0 {
		attrs["attributes"] = joinAttrs(s.Attrs)
	}
	if len(s.TempAttrs) > 0 {
		attrs["temporary"] = joinAttrs(s.TempAttrs)
	}
	return attrs
}

func joinAttrs(as []script.Attr) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

func imageAttrs(img script.ImageSpec, with *script.Expr) map[string]string {
	return withAttr(map[string]string{"image": strings.Join(img.Names, " ")}, with)
}

func withAttr(attrs map[string]string, with *script.Expr) map[string]string {
	if with == nil {
		return attrs
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["with"] = with.Text
	return attrs
}

func modifiers(img script.ImageSpec) []Node {
	if len(img.Modifiers) == 0 {
		return nil
	}
	out := make([]Node, 0, len(img.Modifiers))
	for _, m := range img.Modifiers {
		var v string
		switch mod := m.(type) {
		case *script.AtClause:
			v = mod.Transform.Text
		case *script.ZorderClause:
			v = mod.Order.Text
		case *script.OnlayerClause:
			v = mod.Layer
		case *script.AsClause:
			v = mod.Tag
		case *script.BehindClause:
			v = strings.Join(mod.Tags, " ")
		}
		out = append(out, node(m.Keyword(), m.Pos(), map[string]string{"value": v}, nil))
	}
	return out
}

// MarshalJSON renders t as indented JSON.
func MarshalJSON(t Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes t to w as indented JSON followed by a newline.
func WriteJSON(w io.Writer, t Tree) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// MarshalCBOR encodes t with canonical CBOR options, so the same tree always
// produces the same bytes.
func MarshalCBOR(t Tree) ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	b, err := em.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode cbor: %w", err)
	}
	return b, nil
}

// UnmarshalCBOR decodes a tree written by MarshalCBOR.
func UnmarshalCBOR(b []byte) (Tree, error) {
	var t Tree
	if err := cbor.Unmarshal(b, &t); err != nil {
		return Tree{}, fmt.Errorf("decode cbor: %w", err)
	}
	if t.Format != TreeFormat {
		return Tree{}, fmt.Errorf("not a %s document (format %q)", TreeFormat, t.Format)
	}
	return t, nil
}
