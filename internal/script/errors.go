/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	LexError ErrorKind = iota + 1
	IndentError
	SyntaxError
	UnexpectedEOF
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case IndentError:
		return "indent error"
	case SyntaxError:
		return "syntax error"
	case UnexpectedEOF:
		return "unexpected eof"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Reason is the discriminated cause reported alongside an ErrorKind.
type Reason string

const (
	ReasonUnterminatedString   Reason = "unterminated string"
	ReasonUnterminatedFragment Reason = "unterminated fragment"
	ReasonInvalidUTF8          Reason = "invalid utf-8"
	ReasonInconsistentDedent   Reason = "inconsistent dedent"
	ReasonMixedIndent          Reason = "mixed tabs and spaces"
	ReasonUnexpectedIndent     Reason = "unexpected indent"
	ReasonUnexpectedToken      Reason = "unexpected token"
	ReasonUnexpectedEOF        Reason = "unexpected end of input"
)

// Sentinels for errors.Is; *Error matches the one for its Kind.
var (
	ErrLex           = errors.New("lex error")
	ErrIndent        = errors.New("indent error")
	ErrSyntax        = errors.New("syntax error")
	ErrUnexpectedEOF = errors.New("unexpected end of input")
)

// Error represents a parse error with position context.
// Line and Column mirror Span.Start for callers that only need a location.
type Error struct {
	Kind        ErrorKind
	Reason      Reason
	Span        Span
	Line        int
	Column      int
	Message     string
	Suggestions []string
}

func newError(kind ErrorKind, reason Reason, span Span, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Reason:  reason,
		Span:    span,
		Line:    span.Start.Line,
		Column:  span.Start.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d: %s: %s", e.Line, e.Column, e.Kind, e.Message)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, " or "))
	}
	return b.String()
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLex:
		return e.Kind == LexError
	case ErrIndent:
		return e.Kind == IndentError
	case ErrSyntax:
		return e.Kind == SyntaxError
	case ErrUnexpectedEOF:
		return e.Kind == UnexpectedEOF
	}
	return false
}

// Snippet renders the error with up to one line of context on each side and a caret
// under the offending column:
//
//	   1 | label start:
//	   2 |   "Hello"
//	     |   ^
func (e *Error) Snippet(src []byte) string {
	lines := strings.Split(string(src), "\n")
	ln := e.Line
	if ln < 1 {
		ln = 1
	}
	if ln > len(lines) {
		ln = len(lines)
	}
	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString("\n\n")
	width := len(fmt.Sprint(min(ln+1, len(lines))))
	for i := max(1, ln-1); i <= min(len(lines), ln+1); i++ {
		fmt.Fprintf(&b, " %*d | %s\n", width, i, strings.TrimRight(lines[i-1], "\r"))
		if i == ln {
			col := e.Column
			if col < 1 {
				col = 1
			}
			fmt.Fprintf(&b, " %*s | %s^\n", width, "", caretPad(lines[i-1], col))
		}
	}
	return b.String()
}

// caretPad keeps tabs so the caret lines up with the echoed source.
func caretPad(line string, col int) string {
	var b strings.Builder
	for i := 0; i < col-1 && i < len(line); i++ {
		if line[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// suggestKeywords returns statement keywords close to word, nearest first.
func suggestKeywords(word string) []string {
	if len(word) < 3 {
		return nil
	}
	type cand struct {
		kw   string
		dist int
	}
	seen := map[string]bool{}
	var cands []cand
	for _, r := range fuzzy.RankFindFold(word, statementKeywords) {
		seen[r.Target] = true
		cands = append(cands, cand{r.Target, r.Distance})
	}
	for _, kw := range statementKeywords {
		if seen[kw] {
			continue
		}
		if d := fuzzy.LevenshteinDistance(strings.ToLower(word), kw); d <= 2 && d < len(kw) {
			cands = append(cands, cand{kw, d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].kw < cands[j].kw
	})
	out := make([]string, 0, 2)
	for _, c := range cands {
		if len(out) == 2 {
			break
		}
		out = append(out, c.kw)
	}
	return out
}
