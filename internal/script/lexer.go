/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"unicode/utf8"
)

// Lexer classifies the text of one LINE token. It is context free except for Rest,
// which the parser calls wherever a foreign expression runs to the structural colon.
// Keywords are not recognized here; every word is a NAME.
type Lexer struct {
	src       []byte
	pos       int
	end       int
	line      int
	lineStart int
}

// NewLexer returns a lexer over the span of a LINE token taken from src.
func NewLexer(src []byte, line Token) *Lexer {
	return &Lexer{
		src:       src,
		pos:       line.Span.Start.Offset,
		end:       line.Span.End.Offset,
		line:      line.Span.Start.Line,
		lineStart: line.Span.Start.Offset - (line.Span.Start.Column - 1),
	}
}

func (lx *Lexer) at(off int) Pos {
	return Pos{Offset: off, Line: lx.line, Column: off - lx.lineStart + 1}
}

func (lx *Lexer) span(from, to int) Span { return Span{Start: lx.at(from), End: lx.at(to)} }

func (lx *Lexer) skipSpace() {
	for lx.pos < lx.end {
		switch lx.src[lx.pos] {
		case ' ', '\t', '\f':
			lx.pos++
		default:
			return
		}
	}
}

// mark and reset support speculative lookahead.
func (lx *Lexer) mark() int     { return lx.pos }
func (lx *Lexer) reset(pos int) { lx.pos = pos }

// Peek returns the next token without consuming it.
func (lx *Lexer) Peek() (Token, error) {
	p := lx.pos
	t, err := lx.Next()
	lx.pos = p
	return t, err
}

// Next consumes and returns the next token. A trailing comment reads as EOL.
func (lx *Lexer) Next() (Token, error) {
	lx.skipSpace()
	start := lx.pos
	if start >= lx.end || lx.src[start] == '#' {
		return Token{Kind: TokenEOL, Span: lx.span(start, start)}, nil
	}
	c := lx.src[start]
	switch {
	case isNameStart(c):
		lx.pos++
		for lx.pos < lx.end && isNameChar(lx.src[lx.pos]) {
			lx.pos++
		}
		return lx.token(TokenName, start), nil
	case isDigit(c):
		lx.pos++
		for lx.pos < lx.end && (isNameChar(lx.src[lx.pos]) || lx.src[lx.pos] == '.') {
			lx.pos++
		}
		return lx.token(TokenNumber, start), nil
	case c == '"' || c == '\'':
		if err := lx.skipString(); err != nil {
			return Token{}, err
		}
		return lx.token(TokenString, start), nil
	case c == '(' || c == '[' || c == '{':
		if err := lx.skipGroup(); err != nil {
			return Token{}, err
		}
		return lx.token(TokenParen, start), nil
	}
	_, n := utf8.DecodeRune(lx.src[start:lx.end])
	lx.pos += n
	return lx.token(TokenPunct, start), nil
}

func (lx *Lexer) token(kind TokenKind, start int) Token {
	return Token{Kind: kind, Text: string(lx.src[start:lx.pos]), Span: lx.span(start, lx.pos)}
}

// AtEOL reports whether only whitespace or a comment remains.
func (lx *Lexer) AtEOL() bool {
	p := lx.pos
	lx.skipSpace()
	eol := lx.pos >= lx.end || lx.src[lx.pos] == '#'
	lx.pos = p
	return eol
}

// Rest scans a rest-of-line expression fragment: everything up to the next structural
// colon, a comment or the end of the line. A colon is structural unless it is escaped
// with a backslash or sits inside quotes or brackets. Trailing whitespace is not part of
// the fragment. ok is false when the fragment would be empty.
func (lx *Lexer) Rest() (t Token, ok bool, err error) {
	lx.skipSpace()
	start := lx.pos
	depth := 0
	last := start
scan:
	for lx.pos < lx.end {
		c := lx.src[lx.pos]
		switch {
		case c == '\\' && lx.pos+1 < lx.end:
			lx.pos += 2
			last = lx.pos
			continue
		case c == '"' || c == '\'':
			if err := lx.skipString(); err != nil {
				return Token{}, false, err
			}
			last = lx.pos
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case (c == ')' || c == ']' || c == '}') && depth > 0:
			depth--
		case c == ':' && depth == 0:
			break scan
		case c == '#' && depth == 0:
			break scan
		}
		lx.pos++
		if c != ' ' && c != '\t' && c != '\f' {
			last = lx.pos
		}
	}
	if depth > 0 && lx.pos >= lx.end {
		return Token{}, false, newError(LexError, ReasonUnterminatedFragment, lx.span(start, lx.end),
			"unbalanced brackets in expression")
	}
	if last == start {
		lx.pos = start
		return Token{}, false, nil
	}
	lx.pos = last
	return Token{Kind: TokenRest, Text: string(lx.src[start:last]), Span: lx.span(start, last)}, true, nil
}

// skipString advances over a quoted literal starting at pos.
func (lx *Lexer) skipString() error {
	start := lx.pos
	q := lx.src[start]
	lx.pos++
	for lx.pos < lx.end {
		c := lx.src[lx.pos]
		switch c {
		case '\\':
			lx.pos += 2
			continue
		case q:
			lx.pos++
			return nil
		}
		lx.pos++
	}
	lx.pos = lx.end
	return newError(LexError, ReasonUnterminatedString, lx.span(start, lx.end), "string is not terminated before end of line")
}

// skipGroup advances over one balanced bracket group starting at pos.
// Quotes inside the group are honored; the group may not cross the end of the line.
func (lx *Lexer) skipGroup() error {
	start := lx.pos
	var stack []byte
	for lx.pos < lx.end {
		c := lx.src[lx.pos]
		switch c {
		case '(', '[', '{':
			stack = append(stack, closerFor(c))
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return newError(LexError, ReasonUnterminatedFragment, lx.span(lx.pos, lx.pos+1),
					"mismatched %q in expression", string(c))
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				lx.pos++
				return nil
			}
		case '"', '\'':
			if err := lx.skipString(); err != nil {
				return err
			}
			continue
		}
		lx.pos++
	}
	return newError(LexError, ReasonUnterminatedFragment, lx.span(start, lx.end),
		"%q is not closed before end of line", string(lx.src[start]))
}

func closerFor(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
