/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bytes"
	"unicode/utf8"
)

// DefaultTabWidth is the number of columns a leading tab counts for.
const DefaultTabWidth = 4

// Options tunes the indentation scanner.
type Options struct {
	// TabWidth is the width of one leading tab. Values < 1 mean DefaultTabWidth.
	TabWidth int
	// AllowMixedIndent accepts tabs and spaces in the same leading run.
	AllowMixedIndent bool
}

// DefaultOptions returns tab width 4 with mixed indentation rejected.
func DefaultOptions() Options { return Options{TabWidth: DefaultTabWidth} }

// Option mutates Options.
type Option func(*Options)

// WithTabWidth sets the column width of a leading tab.
func WithTabWidth(n int) Option { return func(o *Options) { o.TabWidth = n } }

// WithMixedIndent toggles acceptance of tab/space mixing within one indent run.
func WithMixedIndent(allow bool) Option { return func(o *Options) { o.AllowMixedIndent = allow } }

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.TabWidth < 1 {
		o.TabWidth = DefaultTabWidth
	}
	return o
}

// IndentStack holds the widths of the open blocks.
// It is never empty and strictly increasing from bottom (0) to top.
type IndentStack []int

func newIndentStack() IndentStack { return IndentStack{0} }

// Top returns the current block's required indentation.
func (s IndentStack) Top() int { return s[len(s)-1] }

// Depth is the number of open blocks above the base level.
func (s IndentStack) Depth() int { return len(s) - 1 }

func (s *IndentStack) push(w int) { *s = append(*s, w) }

func (s *IndentStack) pop() {
	if len(*s) > 1 {
		*s = (*s)[:len(*s)-1]
	}
}

// Scanner is the indentation stage: it turns physical lines into INDENT, DEDENT, NEWLINE
// and LINE tokens. It knows nothing about the statement grammar.
type Scanner struct {
	src   []byte
	opts  Options
	stack IndentStack

	off      int  // start of the next physical line
	line     int  // number of the next physical line
	sawLine  bool // a LINE token has been emitted
	lastEnd  Pos  // end of the previous content line
	queue    []Token
	finished bool
	eof      Span // set once by finish
	err      *Error

	// observe, when set, sees the stack after every change. Used by tests.
	observe func(IndentStack)
}

// NewScanner prepares a scanner over src. A leading UTF-8 byte order mark is skipped.
func NewScanner(src []byte, opts ...Option) *Scanner {
	s := &Scanner{src: src, opts: buildOptions(opts), stack: newIndentStack(), line: 1}
	if bytes.HasPrefix(src, []byte("\xEF\xBB\xBF")) {
		s.off = 3
	}
	s.lastEnd = Pos{Offset: s.off, Line: 1, Column: s.off + 1}
	return s
}

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() *Error { return s.err }

// Stack returns a copy of the current indent stack.
func (s *Scanner) Stack() IndentStack { return append(IndentStack(nil), s.stack...) }

// Next returns the next structural token. After an ERROR token every further call returns EOF.
func (s *Scanner) Next() Token {
	for len(s.queue) == 0 {
		if s.finished {
			return Token{Kind: TokenEOF, Span: s.eof}
		}
		s.scanLine()
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	return t
}

// Scan runs the indentation stage over the whole buffer. On an indentation problem the
// returned slice ends with the ERROR token and err describes it.
func Scan(src []byte, opts ...Option) ([]Token, error) {
	s := NewScanner(src, opts...)
	var out []Token
	for {
		t := s.Next()
		out = append(out, t)
		if t.Kind == TokenError {
			return out, s.err
		}
		if t.Kind == TokenEOF {
			return out, nil
		}
	}
}

func (s *Scanner) emit(t Token) { s.queue = append(s.queue, t) }

func (s *Scanner) fail(e *Error) {
	s.err = e
	s.emit(Token{Kind: TokenError, Span: e.Span})
	s.finish()
}

// finish stops the scan; every later Next returns EOF at the end of the buffer.
func (s *Scanner) finish() {
	p := s.endPos()
	s.eof = Span{Start: p, End: p}
	s.finished = true
}

// endPos is the position just past the last byte.
func (s *Scanner) endPos() Pos {
	start := bytes.LastIndexByte(s.src, '\n') + 1
	return Pos{Offset: len(s.src), Line: 1 + bytes.Count(s.src, []byte{'\n'}), Column: len(s.src) - start + 1}
}

// scanLine consumes one physical line and queues the tokens it produces.
// Blank and comment-only lines produce nothing.
func (s *Scanner) scanLine() {
	if s.off >= len(s.src) {
		s.closeBlocks()
		return
	}
	start := s.off
	lineNo := s.line
	end := bytes.IndexByte(s.src[start:], '\n')
	next := len(s.src)
	if end < 0 {
		end = len(s.src)
	} else {
		end += start
		next = end + 1
	}
	s.off = next
	s.line++

	contentEnd := end
	for contentEnd > start && (s.src[contentEnd-1] == '\r') {
		contentEnd--
	}
	pos := func(off int) Pos { return Pos{Offset: off, Line: lineNo, Column: off - start + 1} }

	width, i := 0, start
	sawTab, sawSpace := false, false
	for ; i < contentEnd; i++ {
		c := s.src[i]
		if c == ' ' {
			width++
			sawSpace = true
		} else if c == '\t' {
			width += s.opts.TabWidth
			sawTab = true
		} else if c == '\f' {
			// form feed resets the count, like Python's tokenizer
			width = 0
		} else {
			break
		}
	}
	if i >= contentEnd || s.src[i] == '#' {
		return
	}
	if !utf8.Valid(s.src[i:contentEnd]) {
		bad := i
		for bad < contentEnd {
			r, n := utf8.DecodeRune(s.src[bad:contentEnd])
			if r == utf8.RuneError && n <= 1 {
				break
			}
			bad += n
		}
		s.fail(newError(LexError, ReasonInvalidUTF8, Span{Start: pos(bad), End: pos(bad + 1)}, "invalid UTF-8 byte 0x%02x", s.src[bad]))
		return
	}
	at := Span{Start: pos(i), End: pos(i)}
	if sawTab && sawSpace && !s.opts.AllowMixedIndent {
		s.fail(newError(IndentError, ReasonMixedIndent, Span{Start: pos(start), End: pos(i)}, "indentation mixes tabs and spaces"))
		return
	}

	top := s.stack.Top()
	switch {
	case width > top:
		s.stack.push(width)
		s.notify()
		s.emit(Token{Kind: TokenIndent, Span: Span{Start: pos(start), End: pos(i)}})
	case width == top:
		if s.sawLine {
			s.emit(Token{Kind: TokenNewline, Span: Span{Start: s.lastEnd, End: s.lastEnd}})
		}
	default:
		for s.stack.Top() > width {
			s.stack.pop()
			s.notify()
			s.emit(Token{Kind: TokenDedent, Span: at})
		}
		if s.stack.Top() != width {
			s.fail(newError(IndentError, ReasonInconsistentDedent, at,
				"unindent to column %d does not match any outer indentation level", width))
			return
		}
	}

	s.emit(Token{Kind: TokenLine, Text: string(s.src[i:contentEnd]), Span: Span{Start: pos(i), End: pos(contentEnd)}})
	s.sawLine = true
	s.lastEnd = pos(contentEnd)
}

// closeBlocks emits one DEDENT per open block and then EOF.
func (s *Scanner) closeBlocks() {
	s.finish()
	eof := s.eof.Start
	for s.stack.Depth() > 0 {
		s.stack.pop()
		s.notify()
		s.emit(Token{Kind: TokenDedent, Span: Span{Start: eof, End: eof}})
	}
	s.emit(Token{Kind: TokenEOF, Span: s.eof})
}

func (s *Scanner) notify() {
	if s.observe != nil {
		s.observe(s.Stack())
	}
}
