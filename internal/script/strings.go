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
)

// Unquote resolves a single- or double-quoted literal. Recognized escapes are \\, \", \',
// \n and \t; any other backslash sequence is kept as written.
func Unquote(raw string) (string, error) {
	if len(raw) < 2 || (raw[0] != '"' && raw[0] != '\'') || raw[len(raw)-1] != raw[0] {
		return "", errors.New("not a quoted string")
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case '\\', '"', '\'':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

// Quote is the inverse of Unquote for the given delimiter ('"' or '\'').
// Only the backslash, the delimiter, newline and tab are escaped. A backslash that Unquote
// would keep as written (as in `\%`) is written bare, so Quote(Unquote(raw)) == raw for
// any raw that uses no optional escapes and no literal tab.
func Quote(s string, delim byte) string {
	if delim != '\'' {
		delim = '"'
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(delim)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 < len(s) && !unquoteEscape(s[i+1]) {
				b.WriteByte(c)
			} else {
				b.WriteString(`\\`)
			}
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case delim:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(delim)
	return b.String()
}

// unquoteEscape reports whether a backslash written before c would be consumed by
// Unquote, either as an escape itself or because Quote writes c as one.
func unquoteEscape(c byte) bool {
	switch c {
	case '\\', '"', '\'', 'n', 't', '\n', '\t':
		return true
	}
	return false
}
