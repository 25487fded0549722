/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// Parse parses a script buffer into a syntax tree.
//
// The grammar pulls structural tokens from the indentation scanner and lexes each line on
// demand, so errors are reported in source order. The first error aborts the parse; no
// partial tree is returned.
//
// Supported statements:
//   - label NAME:            block
//   - [who [attrs] [@ attrs]] "what"
//   - show/hide IMAGE [at|onlayer|as|zorder|behind ...] [with EXPR]
//   - scene [IMAGE ...] [with EXPR], with EXPR
//   - if/elif/else, while, menu with "choice" [if COND]: blocks
//   - jump NAME, call NAME [from NAME], return [EXPR], pass
//   - define/default NAME = EXPR, image NAME... = EXPR
func Parse(src []byte, opts ...Option) (*SourceFile, error) {
	return ParseTokens(src, NewScanner(src, opts...))
}

// ParseString is Parse for string input.
func ParseString(input string, opts ...Option) (*SourceFile, error) {
	return Parse([]byte(input), opts...)
}

// ParseTokens runs the grammar over a structural token stream whose LINE spans index src.
// When the stream yields an ERROR token and ts has an Err() *Error method, that error is
// returned as is.
func ParseTokens(src []byte, ts TokenSource) (*SourceFile, error) {
	p := &parser{src: src, ts: ts}
	p.advance()
	return p.parseSourceFile()
}

// Tokens returns the merged token stream: structural tokens with each LINE replaced by the
// tokens the lexer finds in it. Expression fragments show up in their generic form since
// rest-of-line lexing depends on the parser position.
func Tokens(src []byte, opts ...Option) ([]Token, error) {
	s := NewScanner(src, opts...)
	var out []Token
	for {
		t := s.Next()
		switch t.Kind {
		case TokenLine:
			lx := NewLexer(src, t)
			for {
				lt, err := lx.Next()
				if err != nil {
					return out, err
				}
				if lt.Kind == TokenEOL {
					break
				}
				out = append(out, lt)
			}
			continue
		case TokenError:
			return append(out, t), s.Err()
		case TokenEOF:
			return append(out, t), nil
		}
		out = append(out, t)
	}
}

type parser struct {
	src []byte
	ts  TokenSource
	tok Token // structural lookahead
}

func (p *parser) advance() { p.tok = p.ts.Next() }

// source_file = statement+
func (p *parser) parseSourceFile() (*SourceFile, error) {
	if p.tok.Kind == TokenEOF {
		return nil, newError(UnexpectedEOF, ReasonUnexpectedEOF, p.tok.Span, "script contains no statements")
	}
	stmts, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokenEOF {
		return nil, p.unexpectedStructural(p.tok)
	}
	return &SourceFile{Statements: stmts, Span: spanOf(stmts)}, nil
}

// parseStatements parses `middle_statement* end_statement`.
//
// A middle statement is a simple statement followed by NEWLINE, or a compound statement.
// The end statement is the block's last one: the scanner folds its separator into the
// DEDENT (or EOF at top level) that follows, which is left for the caller to consume.
func (p *parser) parseStatements() ([]Statement, error) {
	var out []Statement
	for {
		st, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
		end, err := p.endOfStatement(st)
		if err != nil {
			return nil, err
		}
		if end {
			return out, nil
		}
	}
}

// endOfStatement decides between the middle and end productions for st.
func (p *parser) endOfStatement(st Statement) (bool, error) {
	switch p.tok.Kind {
	case TokenDedent, TokenEOF:
		return true, nil
	case TokenNewline:
		if compound(st) {
			return false, p.unexpectedStructural(p.tok)
		}
		p.advance()
		return false, nil
	case TokenLine:
		if compound(st) {
			return false, nil
		}
	}
	return false, p.unexpectedStructural(p.tok)
}

// parseBlock parses INDENT statements DEDENT.
func (p *parser) parseBlock() (Block, error) {
	if p.tok.Kind != TokenIndent {
		if p.tok.Kind == TokenEOF {
			return Block{}, newError(UnexpectedEOF, ReasonUnexpectedEOF, p.tok.Span, "expected an indented block")
		}
		if p.tok.Kind == TokenError {
			return Block{}, p.unexpectedStructural(p.tok)
		}
		return Block{}, newError(SyntaxError, ReasonUnexpectedToken, p.tok.Span,
			"expected an indented block, found %s", p.tok.describe())
	}
	p.advance()
	stmts, err := p.parseStatements()
	if err != nil {
		return Block{}, err
	}
	if p.tok.Kind != TokenDedent {
		return Block{}, p.unexpectedStructural(p.tok)
	}
	p.advance()
	return Block{Statements: stmts, Span: spanOf(stmts)}, nil
}

// parseLine consumes one LINE token and parses the statement it starts.
func (p *parser) parseLine() (Statement, error) {
	if p.tok.Kind != TokenLine {
		return nil, p.unexpectedStructural(p.tok)
	}
	line := p.tok
	p.advance()
	return p.statement(NewLexer(p.src, line))
}

// scanErr is implemented by token sources that record why they stopped.
type scanErr interface {
	Err() *Error
}

// unexpectedStructural reports a structural token the grammar cannot accept here.
func (p *parser) unexpectedStructural(t Token) *Error {
	switch t.Kind {
	case TokenIndent:
		if e := p.strayBlockError(); e != nil {
			return e
		}
		return newError(SyntaxError, ReasonUnexpectedIndent, t.Span, "unexpected indent")
	case TokenEOF:
		return newError(UnexpectedEOF, ReasonUnexpectedEOF, t.Span, "unexpected end of input")
	case TokenError:
		return p.scanError(t)
	}
	return newError(SyntaxError, ReasonUnexpectedToken, t.Span, "unexpected %s", t.describe())
}

// scanError returns the error behind an ERROR token. Sources that cannot say
// only get the generic indentation error.
func (p *parser) scanError(t Token) *Error {
	if se, ok := p.ts.(scanErr); ok {
		if e := se.Err(); e != nil {
			return e
		}
	}
	return newError(IndentError, ReasonInconsistentDedent, t.Span, "inconsistent indentation")
}

// strayBlockError skips the block opened by an unexpected INDENT. If the scanner
// fails before that block is closed, or on the line that closes it, the scanner's
// error is returned: the stray indent is then a symptom of broken indentation.
func (p *parser) strayBlockError() *Error {
	depth := 1
	for {
		t := p.ts.Next()
		switch t.Kind {
		case TokenIndent:
			depth++
		case TokenDedent:
			depth--
			if depth > 0 {
				continue
			}
			for t.Kind == TokenDedent {
				t = p.ts.Next()
			}
			if t.Kind == TokenError {
				return p.scanError(t)
			}
			return nil
		case TokenError:
			return p.scanError(t)
		case TokenEOF:
			return nil
		}
	}
}

// unexpected reports a lexical token that does not fit; want names what was expected.
func (p *parser) unexpected(t Token, want string) *Error {
	if t.Kind == TokenEOL {
		return newError(SyntaxError, ReasonUnexpectedToken, t.Span, "unexpected end of line, expected %s", want)
	}
	return newError(SyntaxError, ReasonUnexpectedToken, t.Span, "unexpected %s, expected %s", t.describe(), want)
}

func spanOf(stmts []Statement) Span {
	if len(stmts) == 0 {
		return Span{}
	}
	return Span{Start: stmts[0].Pos().Start, End: stmts[len(stmts)-1].Pos().End}
}

func join(a, b Span) Span { return Span{Start: a.Start, End: b.End} }

func (p *parser) expectName(lx *Lexer, want string) (Token, error) {
	t, err := lx.Next()
	if err != nil {
		return Token{}, err
	}
	if t.Kind != TokenName {
		return Token{}, p.unexpected(t, want)
	}
	return t, nil
}

func (p *parser) expectPunct(lx *Lexer, lit string) (Token, error) {
	t, err := lx.Next()
	if err != nil {
		return Token{}, err
	}
	if t.Kind != TokenPunct || t.Text != lit {
		return Token{}, p.unexpected(t, fmt.Sprintf("%q", lit))
	}
	return t, nil
}

func (p *parser) expectEOL(lx *Lexer) error {
	t, err := lx.Next()
	if err != nil {
		return err
	}
	if t.Kind != TokenEOL {
		return p.unexpected(t, "end of line")
	}
	return nil
}

// peekWord returns the text of the next token when it is a NAME.
func peekWord(lx *Lexer) string {
	t, err := lx.Peek()
	if err != nil || t.Kind != TokenName {
		return ""
	}
	return t.Text
}

func peekPunct(lx *Lexer, lit string) bool {
	t, err := lx.Peek()
	return err == nil && t.Kind == TokenPunct && t.Text == lit
}
