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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := newError(SyntaxError, ReasonUnexpectedToken, Span{Start: Pos{Line: 3, Column: 7}}, "unknown statement %q", "lable")
	e.Suggestions = []string{"label"}
	assert.Equal(t, `3:7: syntax error: unknown statement "lable" (did you mean label?)`, e.Error())
}

func TestErrorSnippet(t *testing.T) {
	src := []byte("label start:\n    e \"Hi\" x\n    jump end\n")
	_, err := Parse(src)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	snip := pe.Snippet(src)
	lines := strings.Split(strings.TrimRight(snip, "\n"), "\n")
	require.Len(t, lines, 6, snip)
	assert.Equal(t, pe.Error(), lines[0])
	assert.Equal(t, ` 2 |     e "Hi" x`, lines[3])
	assert.Equal(t, "   | "+strings.Repeat(" ", 11)+"^", lines[4])
}

func TestSuggestKeywords(t *testing.T) {
	assert.Equal(t, []string{"label"}, suggestKeywords("lable"))
	assert.Contains(t, suggestKeywords("jmp"), "jump")
	assert.Contains(t, suggestKeywords("Retrun"), "return")
	assert.Nil(t, suggestKeywords("x"))
	assert.Empty(t, suggestKeywords("eileen"))
}

func TestErrorKindStrings(t *testing.T) {
	assert.Equal(t, "lex error", LexError.String())
	assert.Equal(t, "indent error", IndentError.String())
	assert.Equal(t, "syntax error", SyntaxError.String())
	assert.Equal(t, "unexpected eof", UnexpectedEOF.String())
}
