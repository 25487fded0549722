/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineLexer(t *testing.T, text string) *Lexer {
	t.Helper()
	toks, err := Scan([]byte(text))
	require.NoError(t, err)
	require.Equal(t, TokenLine, toks[0].Kind)
	return NewLexer([]byte(text), toks[0])
}

type lexed struct {
	Kind TokenKind
	Text string
}

func lexAll(t *testing.T, text string) []lexed {
	t.Helper()
	lx := lineLexer(t, text)
	var out []lexed
	for {
		tk, err := lx.Next()
		require.NoError(t, err)
		if tk.Kind == TokenEOL {
			return out
		}
		out = append(out, lexed{tk.Kind, tk.Text})
	}
}

func TestLexerClassifies(t *testing.T) {
	got := lexAll(t, `show e_1 at (x, ")") zorder 10 -a @ "s\"q" 'x' # c`)
	want := []lexed{
		{TokenName, "show"},
		{TokenName, "e_1"},
		{TokenName, "at"},
		{TokenParen, `(x, ")")`},
		{TokenName, "zorder"},
		{TokenNumber, "10"},
		{TokenPunct, "-"},
		{TokenName, "a"},
		{TokenPunct, "@"},
		{TokenString, `"s\"q"`},
		{TokenString, `'x'`},
	}
	assert.Equal(t, want, got)
}

func TestLexerPunctIsOneRune(t *testing.T) {
	got := lexAll(t, "é=")
	assert.Equal(t, []lexed{{TokenPunct, "é"}, {TokenPunct, "="}}, got)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	lx := lineLexer(t, "jump a")
	p, err := lx.Peek()
	require.NoError(t, err)
	n, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, p, n)
	assert.False(t, lx.AtEOL())
	_, _ = lx.Next()
	assert.True(t, lx.AtEOL())
}

func TestLexerRest(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
		ok   bool
		tail TokenKind
	}{
		{"plain", "x == 1:", "x == 1", true, TokenPunct},
		{"trailing space trimmed", "a and b   :", "a and b", true, TokenPunct},
		{"runs to end of line", "renpy.random.randint(1, 6)", "renpy.random.randint(1, 6)", true, TokenEOL},
		{"comment ends fragment", "points + 1  # bonus", "points + 1", true, TokenEOL},
		{"hash in string", `"#fff" if x else y`, `"#fff" if x else y`, true, TokenEOL},
		{"colon in slice", "items[1:2]:", "items[1:2]", true, TokenPunct},
		{"colon in dict", "{'a': 1}", "{'a': 1}", true, TokenEOL},
		{"lambda colon is structural", "lambda: 1", "lambda", true, TokenPunct},
		{"escaped colon", `a \: b:`, `a \: b`, true, TokenPunct},
		{"empty", ":", "", false, TokenPunct},
		{"only comment", "# nothing", "", false, TokenEOL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lx := lineLexer(t, "x "+tc.line)
			_, err := lx.Next()
			require.NoError(t, err)
			tk, ok, err := lx.Rest()
			require.NoError(t, err)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, TokenRest, tk.Kind)
				assert.Equal(t, tc.want, tk.Text)
			}
			next, err := lx.Next()
			require.NoError(t, err)
			assert.Equal(t, tc.tail, next.Kind)
		})
	}
}

func TestLexerErrors(t *testing.T) {
	cases := []struct {
		name   string
		line   string
		reason Reason
		col    int
	}{
		{"unterminated double", `say "abc`, ReasonUnterminatedString, 5},
		{"unterminated single", `x 'abc\'`, ReasonUnterminatedString, 3},
		{"unclosed paren", "x (a, [b]", ReasonUnterminatedFragment, 3},
		{"mismatched bracket", "x (a]", ReasonUnterminatedFragment, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lx := lineLexer(t, tc.line)
			var err error
			for err == nil {
				var tk Token
				tk, err = lx.Next()
				if tk.Kind == TokenEOL {
					t.Fatalf("reached end of line without error")
				}
			}
			pe, ok := err.(*Error)
			require.True(t, ok, "error type %T", err)
			assert.Equal(t, LexError, pe.Kind)
			assert.Equal(t, tc.reason, pe.Reason)
			assert.Equal(t, tc.col, pe.Column)
		})
	}
}

func TestRestUnbalanced(t *testing.T) {
	lx := lineLexer(t, "if (a and b")
	_, _ = lx.Next()
	_, _, err := lx.Rest()
	require.ErrorIs(t, err, ErrLex)
}

func TestTokensDump(t *testing.T) {
	toks, err := Tokens([]byte("label a:\n    e \"hi\"\n"))
	require.NoError(t, err)
	want := []TokenKind{TokenName, TokenName, TokenPunct, TokenIndent, TokenName, TokenString, TokenDedent, TokenEOF}
	assert.Equal(t, want, kinds(toks))

	toks, err = Tokens([]byte("a\n    b\n  c\n"))
	require.ErrorIs(t, err, ErrIndent)
	assert.Equal(t, TokenError, toks[len(toks)-1].Kind)
}
