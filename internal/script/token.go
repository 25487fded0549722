/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// Pos is a location in the source buffer.
// Offset is a 0-based byte offset; Line and Column are 1-based, Column counts bytes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Span is a half-open byte range [Start, End).
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string { return s.Start.String() + "-" + s.End.String() }

// TokenKind tags a Token.
// The first group is produced by the indentation scanner, the second by the lexer.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIndent
	TokenDedent
	TokenNewline
	TokenError
	TokenLine // content of one logical line, handed to the lexer

	TokenName
	TokenString
	TokenNumber
	TokenPunct
	TokenParen // balanced (), [] or {} group
	TokenRest  // rest-of-line expression fragment
	TokenEOL
)

var tokenKindNames = [...]string{
	TokenEOF:     "EOF",
	TokenIndent:  "INDENT",
	TokenDedent:  "DEDENT",
	TokenNewline: "NEWLINE",
	TokenError:   "ERROR",
	TokenLine:    "LINE",
	TokenName:    "NAME",
	TokenString:  "STRING",
	TokenNumber:  "NUMBER",
	TokenPunct:   "PUNCT",
	TokenParen:   "PAREN",
	TokenRest:    "REST",
	TokenEOL:     "EOL",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Structural reports whether the kind is emitted by the indentation scanner.
func (k TokenKind) Structural() bool { return k <= TokenLine }

// Token is a single lexical unit. Text holds the verbatim source of the token
// (empty for INDENT, DEDENT, NEWLINE and EOF).
type Token struct {
	Kind TokenKind
	Text string
	Span Span
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIndent, TokenDedent, TokenNewline, TokenEOF, TokenEOL:
		return fmt.Sprintf("%s@%s", t.Kind, t.Span.Start)
	}
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Text, t.Span.Start)
}

// describe renders a token for error messages.
func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of input"
	case TokenEOL:
		return "end of line"
	case TokenIndent:
		return "indent"
	case TokenDedent:
		return "dedent"
	case TokenNewline:
		return "newline"
	}
	return fmt.Sprintf("%q", t.Text)
}

// TokenSource yields the structural token stream consumed by the parser.
// Implementations own all column counting; the parser never looks at indentation.
type TokenSource interface {
	Next() Token
}
