/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

const formatIndent = "    "

// Format prints f as canonical source: four spaces per block level, single spaces between
// tokens, no comments and no blank lines. String literals and expression fragments are
// printed as they were written, so Parse(Format(f)) yields a tree equal to f up to spans.
func Format(f *SourceFile) string {
	var b strings.Builder
	if f != nil {
		formatList(&b, f.Statements, 0)
	}
	return b.String()
}

func formatList(b *strings.Builder, stmts []Statement, depth int) {
	for _, s := range stmts {
		formatStmt(b, s, depth)
	}
}

func line(b *strings.Builder, depth int, parts ...string) {
	b.WriteString(strings.Repeat(formatIndent, depth))
	b.WriteString(strings.Join(parts, " "))
	b.WriteByte('\n')
}

func formatStmt(b *strings.Builder, s Statement, depth int) {
	switch st := s.(type) {
	case *Label:
		line(b, depth, "label", st.Name.String()+":")
		formatList(b, st.Body.Statements, depth+1)
	case *Say:
		line(b, depth, sayParts(st)...)
	case *Show:
		line(b, depth, append([]string{"show"}, imageParts(st.Image, st.With)...)...)
	case *Hide:
		line(b, depth, append([]string{"hide"}, imageParts(st.Image, st.With)...)...)
	case *Scene:
		parts := []string{"scene"}
		if st.Image != nil {
			parts = append(parts, imageParts(*st.Image, nil)...)
		}
		if st.With != nil {
			parts = append(parts, "with", st.With.Text)
		}
		line(b, depth, parts...)
	case *With:
		line(b, depth, "with", st.Transition.Text)
	case *If:
		line(b, depth, "if", st.Cond.Text+":")
		formatList(b, st.Body.Statements, depth+1)
		for _, e := range st.Elifs {
			line(b, depth, "elif", e.Cond.Text+":")
			formatList(b, e.Body.Statements, depth+1)
		}
		if st.Else != nil {
			line(b, depth, "else:")
			formatList(b, st.Else.Statements, depth+1)
		}
	case *While:
		line(b, depth, "while", st.Cond.Text+":")
		formatList(b, st.Body.Statements, depth+1)
	case *Menu:
		if st.Name != nil {
			line(b, depth, "menu", st.Name.String()+":")
		} else {
			line(b, depth, "menu:")
		}
		if st.Prompt != nil {
			line(b, depth+1, sayParts(st.Prompt)...)
		}
		for _, c := range st.Choices {
			if c.Cond != nil {
				line(b, depth+1, c.Text.Raw, "if", c.Cond.Text+":")
			} else {
				line(b, depth+1, c.Text.Raw+":")
			}
			formatList(b, c.Body.Statements, depth+2)
		}
	case *Jump:
		line(b, depth, "jump", st.Target.String())
	case *Call:
		if st.From != nil {
			line(b, depth, "call", st.Target.String(), "from", st.From.String())
		} else {
			line(b, depth, "call", st.Target.String())
		}
	case *Return:
		if st.Value != nil {
			line(b, depth, "return", st.Value.Text)
		} else {
			line(b, depth, "return")
		}
	case *Pass:
		line(b, depth, "pass")
	case *Define:
		line(b, depth, "define", st.Name, "=", st.Value.Text)
	case *Default:
		line(b, depth, "default", st.Name, "=", st.Value.Text)
	case *Image:
		parts := append([]string{"image"}, st.Names...)
		line(b, depth, append(parts, "=", st.Value.Text)...)
	}
}

func sayParts(s *Say) []string {
	var parts []string
	if s.Who != "" {
		parts = append(parts, s.Who)
		for _, a := range s.Attrs {
			parts = append(parts, a.String())
		}
		if len(s.TempAttrs) > 0 {
			parts = append(parts, "@")
			for _, a := range s.TempAttrs {
				parts = append(parts, a.String())
			}
		}
	}
	return append(parts, s.What.Raw)
}

func imageParts(img ImageSpec, with *Expr) []string {
	parts := append([]string(nil), img.Names...)
	for _, m := range img.Modifiers {
		parts = append(parts, m.Keyword())
		switch mod := m.(type) {
		case *AtClause:
			parts = append(parts, mod.Transform.Text)
		case *ZorderClause:
			parts = append(parts, mod.Order.Text)
		case *OnlayerClause:
			parts = append(parts, mod.Layer)
		case *AsClause:
			parts = append(parts, mod.Tag)
		case *BehindClause:
			parts = append(parts, mod.Tags...)
		}
	}
	if with != nil {
		parts = append(parts, "with", with.Text)
	}
	return parts
}

// String renders the attribute as written, with its leading '-' when negated.
func (a Attr) String() string {
	if a.Negated {
		return "-" + a.Name
	}
	return a.Name
}
