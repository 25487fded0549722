/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Visitor is called for each statement in pre-order. depth is 0 for top-level statements.
// Returning false skips the statement's children.
type Visitor func(s Statement, depth int) bool

// Walk visits every statement of f in source order.
func Walk(f *SourceFile, fn Visitor) {
	if f == nil {
		return
	}
	walkList(f.Statements, 0, fn)
}

func walkList(stmts []Statement, depth int, fn Visitor) {
	for _, s := range stmts {
		if !fn(s, depth) {
			continue
		}
		for _, b := range Children(s) {
			walkList(b.Statements, depth+1, fn)
		}
	}
}

// Children returns the nested blocks of s in source order. A menu prompt is not a block
// and is not included; menu choices contribute their bodies.
func Children(s Statement) []Block {
	switch st := s.(type) {
	case *Label:
		return []Block{st.Body}
	case *While:
		return []Block{st.Body}
	case *If:
		out := []Block{st.Body}
		for _, e := range st.Elifs {
			out = append(out, e.Body)
		}
		if st.Else != nil {
			out = append(out, *st.Else)
		}
		return out
	case *Menu:
		out := make([]Block, 0, len(st.Choices))
		for _, c := range st.Choices {
			out = append(out, c.Body)
		}
		return out
	}
	return nil
}

// Labels returns every label declared in f, nested ones included.
func Labels(f *SourceFile) []*Label {
	var out []*Label
	Walk(f, func(s Statement, _ int) bool {
		if l, ok := s.(*Label); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

// OutlineEntry is one line of a structural outline.
type OutlineEntry struct {
	Depth int
	Kind  StmtKind
	Text  string
	Span  Span
}

// Outline lists the statements that shape control flow: labels, branches, menus and their
// choices, jumps, calls and returns. Dialogue and staging are left out.
func Outline(f *SourceFile) []OutlineEntry {
	var out []OutlineEntry
	if f != nil {
		outline(f.Statements, 0, &out)
	}
	return out
}

func outline(stmts []Statement, depth int, out *[]OutlineEntry) {
	add := func(kind StmtKind, text string, span Span) {
		*out = append(*out, OutlineEntry{Depth: depth, Kind: kind, Text: text, Span: span})
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *Label:
			add(KindLabel, Describe(st), st.Span)
			outline(st.Body.Statements, depth+1, out)
		case *Jump, *Call:
			add(s.Kind(), Describe(s), s.Pos())
		case *Return:
			add(KindReturn, "return", st.Span)
		case *While:
			add(KindWhile, "while "+st.Cond.Text, st.Span)
			outline(st.Body.Statements, depth+1, out)
		case *If:
			add(KindIf, "if "+st.Cond.Text, st.Span)
			outline(st.Body.Statements, depth+1, out)
			for _, e := range st.Elifs {
				add(KindIf, "elif "+e.Cond.Text, e.Span)
				outline(e.Body.Statements, depth+1, out)
			}
			if st.Else != nil {
				add(KindIf, "else", st.Else.Span)
				outline(st.Else.Statements, depth+1, out)
			}
		case *Menu:
			text := "menu"
			if st.Name != nil {
				text += " " + st.Name.String()
			}
			add(KindMenu, text, st.Span)
			for _, c := range st.Choices {
				*out = append(*out, OutlineEntry{Depth: depth + 1, Kind: KindMenu, Text: c.Text.Raw, Span: c.Span})
				outline(c.Body.Statements, depth+2, out)
			}
		}
	}
}
