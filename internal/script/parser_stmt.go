/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// statementKeywords are the words that may open a statement.
var statementKeywords = []string{
	"call", "default", "define", "elif", "else", "hide", "if", "image", "jump",
	"label", "menu", "pass", "return", "scene", "show", "while", "with",
}

// imageKeywords end the name run of an image spec.
var imageKeywords = map[string]bool{
	"at": true, "onlayer": true, "as": true, "zorder": true, "behind": true, "with": true,
}

type stmtFunc func(p *parser, lx *Lexer, kw Token) (Statement, error)

var statementTable map[string]stmtFunc

func init() {
	statementTable = map[string]stmtFunc{
		"label":   (*parser).parseLabel,
		"show":    (*parser).parseShow,
		"hide":    (*parser).parseHide,
		"scene":   (*parser).parseScene,
		"with":    (*parser).parseWith,
		"if":      (*parser).parseIf,
		"while":   (*parser).parseWhile,
		"menu":    (*parser).parseMenu,
		"jump":    (*parser).parseJump,
		"call":    (*parser).parseCall,
		"return":  (*parser).parseReturn,
		"pass":    (*parser).parsePass,
		"define":  (*parser).parseDefine,
		"default": (*parser).parseDefault,
		"image":   (*parser).parseImage,
	}
}

// statement dispatches on the first token of a line. The dialogue shape is tried before
// any keyword so that `show "hello"` is the character show speaking.
func (p *parser) statement(lx *Lexer) (Statement, error) {
	first, err := lx.Peek()
	if err != nil {
		return nil, err
	}
	switch first.Kind {
	case TokenString:
		return p.parseSay(lx)
	case TokenName:
	default:
		return nil, p.unexpected(first, "a statement")
	}
	say, err := looksLikeSay(lx)
	if err != nil {
		return nil, err
	}
	if say {
		return p.parseSay(lx)
	}
	if fn, ok := statementTable[first.Text]; ok {
		kw, _ := lx.Next()
		return fn(p, lx, kw)
	}
	if first.Text == "elif" || first.Text == "else" {
		return nil, newError(SyntaxError, ReasonUnexpectedToken, first.Span, "%q without a matching if", first.Text)
	}
	e := newError(SyntaxError, ReasonUnexpectedToken, first.Span, "unknown statement %q", first.Text)
	e.Suggestions = suggestKeywords(first.Text)
	return nil, e
}

// looksLikeSay reports whether the line has the dialogue shape
// NAME (['-'] NAME)* ['@' (['-'] NAME)+] STRING. It never consumes input.
func looksLikeSay(lx *Lexer) (bool, error) {
	m := lx.mark()
	defer lx.reset(m)
	t, err := lx.Next()
	if err != nil || t.Kind != TokenName {
		return false, err
	}
	temp, tempAttrs := false, 0
	for {
		t, err = lx.Next()
		if err != nil {
			return false, err
		}
		switch {
		case t.Kind == TokenString:
			return !temp || tempAttrs > 0, nil
		case t.Kind == TokenName:
			if temp {
				tempAttrs++
			}
		case t.Kind == TokenPunct && t.Text == "-":
			n, err := lx.Next()
			if err != nil || n.Kind != TokenName {
				return false, err
			}
			if temp {
				tempAttrs++
			}
		case t.Kind == TokenPunct && t.Text == "@" && !temp:
			temp = true
		default:
			return false, nil
		}
	}
}

// say_stmt: [who attrs* ['@' attrs+]] what
func (p *parser) parseSay(lx *Lexer) (*Say, error) {
	t, err := lx.Next()
	if err != nil {
		return nil, err
	}
	s := &Say{}
	start := t.Span
	if t.Kind == TokenName {
		s.Who = t.Text
		temp := false
		for {
			t, err = lx.Next()
			if err != nil {
				return nil, err
			}
			if t.Kind == TokenString {
				break
			}
			if t.Kind == TokenPunct && t.Text == "@" && !temp {
				temp = true
				continue
			}
			attr, err := p.attr(lx, t)
			if err != nil {
				return nil, err
			}
			if temp {
				s.TempAttrs = append(s.TempAttrs, attr)
			} else {
				s.Attrs = append(s.Attrs, attr)
			}
		}
		if temp && len(s.TempAttrs) == 0 {
			return nil, p.unexpected(t, "an attribute after '@'")
		}
	}
	if t.Kind != TokenString {
		return nil, p.unexpected(t, "a string")
	}
	what, err := stringLit(t)
	if err != nil {
		return nil, err
	}
	s.What = what
	s.Span = join(start, t.Span)
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return s, nil
}

// attr parses one say attribute whose first token t was already read.
func (p *parser) attr(lx *Lexer, t Token) (Attr, error) {
	if t.Kind == TokenName {
		return Attr{Name: t.Text, Span: t.Span}, nil
	}
	if t.Kind == TokenPunct && t.Text == "-" {
		n, err := p.expectName(lx, "an attribute name")
		if err != nil {
			return Attr{}, err
		}
		return Attr{Name: n.Text, Negated: true, Span: join(t.Span, n.Span)}, nil
	}
	return Attr{}, p.unexpected(t, "an attribute or a string")
}

func stringLit(t Token) (StringLit, error) {
	v, err := Unquote(t.Text)
	if err != nil {
		return StringLit{}, newError(LexError, ReasonUnterminatedString, t.Span, "%v", err)
	}
	return StringLit{Value: v, Raw: t.Text, Span: t.Span}, nil
}

// LABEL_NAME: [[NAME] '.'] NAME
func (p *parser) parseLabelName(lx *Lexer) (LabelName, error) {
	t, err := lx.Next()
	if err != nil {
		return LabelName{}, err
	}
	if t.Kind == TokenPunct && t.Text == "." {
		n, err := p.expectName(lx, "a label name")
		if err != nil {
			return LabelName{}, err
		}
		return LabelName{Local: true, Name: n.Text, Span: join(t.Span, n.Span)}, nil
	}
	if t.Kind != TokenName {
		return LabelName{}, p.unexpected(t, "a label name")
	}
	if !peekPunct(lx, ".") {
		return LabelName{Name: t.Text, Span: t.Span}, nil
	}
	_, _ = lx.Next()
	n, err := p.expectName(lx, "a label name after '.'")
	if err != nil {
		return LabelName{}, err
	}
	return LabelName{Scope: t.Text, Name: n.Text, Span: join(t.Span, n.Span)}, nil
}

// opens checks the `:` EOL tail of a compound statement header.
func (p *parser) opens(lx *Lexer) error {
	if _, err := p.expectPunct(lx, ":"); err != nil {
		return err
	}
	return p.expectEOL(lx)
}

func (p *parser) parseLabel(lx *Lexer, kw Token) (Statement, error) {
	name, err := p.parseLabelName(lx)
	if err != nil {
		return nil, err
	}
	if err := p.opens(lx); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Label{Name: name, Body: body, Span: join(kw.Span, body.Span)}, nil
}

// simple_expr: NAME | STRING | NUMBER | parenthesized group
func (p *parser) simpleExpr(lx *Lexer) (Expr, error) {
	t, err := lx.Next()
	if err != nil {
		return Expr{}, err
	}
	var kind ExprKind
	switch t.Kind {
	case TokenName:
		kind = ExprName
	case TokenString:
		kind = ExprString
	case TokenNumber:
		kind = ExprNumber
	case TokenParen:
		kind = ExprParen
	default:
		return Expr{}, p.unexpected(t, "an expression")
	}
	return Expr{Kind: kind, Text: t.Text, Span: t.Span}, nil
}

// python rest-of-line fragment, required.
func (p *parser) pythonExpr(lx *Lexer, want string) (Expr, error) {
	t, ok, err := lx.Rest()
	if err != nil {
		return Expr{}, err
	}
	if !ok {
		n, _ := lx.Peek()
		return Expr{}, p.unexpected(n, want)
	}
	return Expr{Kind: ExprPython, Text: t.Text, Span: t.Span}, nil
}

// image_spec: NAME+ image_modifier*
func (p *parser) parseImageSpec(lx *Lexer) (ImageSpec, error) {
	var spec ImageSpec
	for {
		t, err := lx.Peek()
		if err != nil {
			return ImageSpec{}, err
		}
		if t.Kind != TokenName || imageKeywords[t.Text] {
			if len(spec.Names) == 0 {
				return ImageSpec{}, p.unexpected(t, "an image name")
			}
			break
		}
		_, _ = lx.Next()
		if len(spec.Names) == 0 {
			spec.Span = t.Span
		}
		spec.Names = append(spec.Names, t.Text)
		spec.Span.End = t.Span.End
	}
	for {
		word := peekWord(lx)
		if word == "" || word == "with" || !imageKeywords[word] {
			return spec, nil
		}
		kw, _ := lx.Next()
		var mod Modifier
		switch word {
		case "at":
			e, err := p.simpleExpr(lx)
			if err != nil {
				return ImageSpec{}, err
			}
			mod = &AtClause{Transform: e, Span: join(kw.Span, e.Span)}
		case "zorder":
			e, err := p.simpleExpr(lx)
			if err != nil {
				return ImageSpec{}, err
			}
			mod = &ZorderClause{Order: e, Span: join(kw.Span, e.Span)}
		case "onlayer":
			n, err := p.expectName(lx, "a layer name")
			if err != nil {
				return ImageSpec{}, err
			}
			mod = &OnlayerClause{Layer: n.Text, Span: join(kw.Span, n.Span)}
		case "as":
			n, err := p.expectName(lx, "an image tag")
			if err != nil {
				return ImageSpec{}, err
			}
			mod = &AsClause{Tag: n.Text, Span: join(kw.Span, n.Span)}
		case "behind":
			b := &BehindClause{Span: kw.Span}
			for {
				t, err := lx.Peek()
				if err != nil {
					return ImageSpec{}, err
				}
				if t.Kind != TokenName || imageKeywords[t.Text] {
					if len(b.Tags) == 0 {
						return ImageSpec{}, p.unexpected(t, "an image tag")
					}
					break
				}
				_, _ = lx.Next()
				b.Tags = append(b.Tags, t.Text)
				b.Span.End = t.Span.End
			}
			mod = b
		}
		spec.Modifiers = append(spec.Modifiers, mod)
		spec.Span.End = mod.Pos().End
	}
}

// withClause parses an optional trailing `with EXPR`.
func (p *parser) withClause(lx *Lexer) (*Expr, error) {
	if peekWord(lx) != "with" {
		return nil, nil
	}
	_, _ = lx.Next()
	e, err := p.simpleExpr(lx)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// lastEnd is the end of the last consumed token on the line, for statement spans.
func lastEnd(def Span, spans ...*Span) Span {
	out := def
	for _, s := range spans {
		if s != nil && s.End.Offset > out.End.Offset {
			out.End = s.End
		}
	}
	return out
}

func (p *parser) parseShow(lx *Lexer, kw Token) (Statement, error) {
	spec, with, err := p.imageStatement(lx)
	if err != nil {
		return nil, err
	}
	return &Show{Image: spec, With: with, Span: lastEnd(join(kw.Span, spec.Span), exprSpan(with))}, nil
}

func (p *parser) parseHide(lx *Lexer, kw Token) (Statement, error) {
	spec, with, err := p.imageStatement(lx)
	if err != nil {
		return nil, err
	}
	return &Hide{Image: spec, With: with, Span: lastEnd(join(kw.Span, spec.Span), exprSpan(with))}, nil
}

func (p *parser) imageStatement(lx *Lexer) (ImageSpec, *Expr, error) {
	spec, err := p.parseImageSpec(lx)
	if err != nil {
		return ImageSpec{}, nil, err
	}
	with, err := p.withClause(lx)
	if err != nil {
		return ImageSpec{}, nil, err
	}
	if err := p.expectEOL(lx); err != nil {
		return ImageSpec{}, nil, err
	}
	return spec, with, nil
}

func exprSpan(e *Expr) *Span {
	if e == nil {
		return nil
	}
	return &e.Span
}

func (p *parser) parseScene(lx *Lexer, kw Token) (Statement, error) {
	s := &Scene{Span: kw.Span}
	if w := peekWord(lx); w != "" && !imageKeywords[w] {
		spec, err := p.parseImageSpec(lx)
		if err != nil {
			return nil, err
		}
		s.Image = &spec
		s.Span.End = spec.Span.End
	}
	with, err := p.withClause(lx)
	if err != nil {
		return nil, err
	}
	s.With = with
	s.Span = lastEnd(s.Span, exprSpan(with))
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseWith(lx *Lexer, kw Token) (Statement, error) {
	e, err := p.simpleExpr(lx)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return &With{Transition: e, Span: join(kw.Span, e.Span)}, nil
}

// condBlock parses `EXPR ':' block` shared by if, elif and while.
func (p *parser) condBlock(lx *Lexer) (Expr, Block, error) {
	cond, err := p.pythonExpr(lx, "a condition")
	if err != nil {
		return Expr{}, Block{}, err
	}
	if err := p.opens(lx); err != nil {
		return Expr{}, Block{}, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return Expr{}, Block{}, err
	}
	return cond, body, nil
}

// lineKeyword returns the keyword opening the pending LINE token, or "" when the line
// is dialogue or starts with something else.
func (p *parser) lineKeyword() string {
	if p.tok.Kind != TokenLine {
		return ""
	}
	lx := NewLexer(p.src, p.tok)
	if say, err := looksLikeSay(lx); err != nil || say {
		return ""
	}
	return peekWord(lx)
}

// if_stmt: 'if' cond ':' block elif_clause* [else_clause]
func (p *parser) parseIf(lx *Lexer, kw Token) (Statement, error) {
	cond, body, err := p.condBlock(lx)
	if err != nil {
		return nil, err
	}
	s := &If{Cond: cond, Body: body, Span: join(kw.Span, body.Span)}
	for p.lineKeyword() == "elif" {
		line := NewLexer(p.src, p.tok)
		p.advance()
		ekw, _ := line.Next()
		c, b, err := p.condBlock(line)
		if err != nil {
			return nil, err
		}
		s.Elifs = append(s.Elifs, Elif{Cond: c, Body: b, Span: join(ekw.Span, b.Span)})
		s.Span.End = b.Span.End
	}
	if p.lineKeyword() == "else" {
		line := NewLexer(p.src, p.tok)
		p.advance()
		_, _ = line.Next()
		if err := p.opens(line); err != nil {
			return nil, err
		}
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		s.Else = &b
		s.Span.End = b.Span.End
	}
	return s, nil
}

func (p *parser) parseWhile(lx *Lexer, kw Token) (Statement, error) {
	cond, body, err := p.condBlock(lx)
	if err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body, Span: join(kw.Span, body.Span)}, nil
}

// menu_stmt: 'menu' [LABEL_NAME] ':' INDENT [say NEWLINE] choice+ DEDENT
func (p *parser) parseMenu(lx *Lexer, kw Token) (Statement, error) {
	m := &Menu{Span: kw.Span}
	if !peekPunct(lx, ":") {
		name, err := p.parseLabelName(lx)
		if err != nil {
			return nil, err
		}
		m.Name = &name
	}
	if err := p.opens(lx); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokenIndent {
		_, err := p.parseBlock()
		return nil, err
	}
	p.advance()

	if p.tok.Kind == TokenLine && !p.choiceLine() {
		line := NewLexer(p.src, p.tok)
		p.advance()
		first, err := line.Peek()
		if err != nil {
			return nil, err
		}
		if first.Kind != TokenString {
			if say, err := looksLikeSay(line); err != nil {
				return nil, err
			} else if !say {
				return nil, p.unexpected(first, "a menu prompt or choice")
			}
		}
		prompt, err := p.parseSay(line)
		if err != nil {
			return nil, err
		}
		m.Prompt = prompt
		if p.tok.Kind != TokenNewline {
			if p.tok.Kind == TokenDedent {
				return nil, newError(SyntaxError, ReasonUnexpectedToken, p.tok.Span, "menu needs at least one choice")
			}
			return nil, p.unexpectedStructural(p.tok)
		}
		p.advance()
	}

	for p.tok.Kind == TokenLine {
		c, err := p.parseChoice()
		if err != nil {
			return nil, err
		}
		m.Choices = append(m.Choices, c)
		m.Span.End = c.Span.End
	}
	if len(m.Choices) == 0 {
		return nil, newError(SyntaxError, ReasonUnexpectedToken, p.tok.Span, "menu needs at least one choice")
	}
	if p.tok.Kind != TokenDedent {
		return nil, p.unexpectedStructural(p.tok)
	}
	p.advance()
	return m, nil
}

// choiceLine reports whether the pending line is `STRING [if ...] :`.
func (p *parser) choiceLine() bool {
	lx := NewLexer(p.src, p.tok)
	t, err := lx.Next()
	if err != nil || t.Kind != TokenString {
		return false
	}
	return peekPunct(lx, ":") || peekWord(lx) == "if"
}

// choice: STRING ['if' cond] ':' block
func (p *parser) parseChoice() (Choice, error) {
	lx := NewLexer(p.src, p.tok)
	p.advance()
	t, err := lx.Next()
	if err != nil {
		return Choice{}, err
	}
	if t.Kind != TokenString {
		return Choice{}, p.unexpected(t, "a menu choice")
	}
	text, err := stringLit(t)
	if err != nil {
		return Choice{}, err
	}
	c := Choice{Text: text}
	if peekWord(lx) == "if" {
		_, _ = lx.Next()
		cond, err := p.pythonExpr(lx, "a condition")
		if err != nil {
			return Choice{}, err
		}
		c.Cond = &cond
	}
	if err := p.opens(lx); err != nil {
		return Choice{}, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return Choice{}, err
	}
	c.Body = body
	c.Span = join(t.Span, body.Span)
	return c, nil
}

func (p *parser) parseJump(lx *Lexer, kw Token) (Statement, error) {
	target, err := p.parseLabelName(lx)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return &Jump{Target: target, Span: join(kw.Span, target.Span)}, nil
}

func (p *parser) parseCall(lx *Lexer, kw Token) (Statement, error) {
	target, err := p.parseLabelName(lx)
	if err != nil {
		return nil, err
	}
	s := &Call{Target: target, Span: join(kw.Span, target.Span)}
	if peekWord(lx) == "from" {
		_, _ = lx.Next()
		from, err := p.parseLabelName(lx)
		if err != nil {
			return nil, err
		}
		s.From = &from
		s.Span.End = from.Span.End
	}
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseReturn(lx *Lexer, kw Token) (Statement, error) {
	s := &Return{Span: kw.Span}
	t, ok, err := lx.Rest()
	if err != nil {
		return nil, err
	}
	if ok {
		s.Value = &Expr{Kind: ExprPython, Text: t.Text, Span: t.Span}
		s.Span.End = t.Span.End
	}
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parsePass(lx *Lexer, kw Token) (Statement, error) {
	if err := p.expectEOL(lx); err != nil {
		return nil, err
	}
	return &Pass{Span: kw.Span}, nil
}

// dottedName: NAME ('.' NAME)*
func (p *parser) dottedName(lx *Lexer) (string, error) {
	t, err := p.expectName(lx, "a name")
	if err != nil {
		return "", err
	}
	name := t.Text
	for peekPunct(lx, ".") {
		_, _ = lx.Next()
		n, err := p.expectName(lx, "a name after '.'")
		if err != nil {
			return "", err
		}
		name += "." + n.Text
	}
	return name, nil
}

// assignment parses `= EXPR` EOL.
func (p *parser) assignment(lx *Lexer) (Expr, error) {
	if _, err := p.expectPunct(lx, "="); err != nil {
		return Expr{}, err
	}
	value, err := p.pythonExpr(lx, "an expression")
	if err != nil {
		return Expr{}, err
	}
	if err := p.expectEOL(lx); err != nil {
		return Expr{}, err
	}
	return value, nil
}

func (p *parser) parseDefine(lx *Lexer, kw Token) (Statement, error) {
	name, err := p.dottedName(lx)
	if err != nil {
		return nil, err
	}
	value, err := p.assignment(lx)
	if err != nil {
		return nil, err
	}
	return &Define{Name: name, Value: value, Span: join(kw.Span, value.Span)}, nil
}

func (p *parser) parseDefault(lx *Lexer, kw Token) (Statement, error) {
	name, err := p.dottedName(lx)
	if err != nil {
		return nil, err
	}
	value, err := p.assignment(lx)
	if err != nil {
		return nil, err
	}
	return &Default{Name: name, Value: value, Span: join(kw.Span, value.Span)}, nil
}

// image_stmt: 'image' NAME+ '=' EXPR
func (p *parser) parseImage(lx *Lexer, kw Token) (Statement, error) {
	var names []string
	for {
		t, err := lx.Peek()
		if err != nil {
			return nil, err
		}
		if t.Kind != TokenName {
			if len(names) == 0 {
				return nil, p.unexpected(t, "an image name")
			}
			break
		}
		_, _ = lx.Next()
		names = append(names, t.Text)
	}
	value, err := p.assignment(lx)
	if err != nil {
		return nil, err
	}
	return &Image{Names: names, Value: value, Span: join(kw.Span, value.Span)}, nil
}

// Describe renders a short description of a statement for logs and listings.
func Describe(s Statement) string {
	switch st := s.(type) {
	case *Label:
		return "label " + st.Name.String()
	case *Say:
		if st.Narration() {
			return fmt.Sprintf("narration %q", st.What.Value)
		}
		return fmt.Sprintf("%s says %q", st.Who, st.What.Value)
	case *Jump:
		return "jump " + st.Target.String()
	case *Call:
		return "call " + st.Target.String()
	case *Define:
		return "define " + st.Name
	case *Default:
		return "default " + st.Name
	}
	return s.Kind().String()
}
