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
)

func TestUnquote(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`"a\"b"`, `a"b`},
		{`'it\'s'`, "it's"},
		{`"back\\slash"`, `back\slash`},
		{`"line\nbreak\ttab"`, "line\nbreak\ttab"},
		{`"{b}\%kept{/b}"`, `{b}\%kept{/b}`},
		{`""`, ""},
	}
	for _, tc := range cases {
		got, err := Unquote(tc.raw)
		if err != nil {
			t.Fatalf("Unquote(%s): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("Unquote(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	for _, bad := range []string{``, `"`, `"abc'`, `abc`} {
		if _, err := Unquote(bad); err == nil {
			t.Errorf("Unquote(%q) should fail", bad)
		}
	}
}

// Every printable ASCII string survives Quote then Unquote with either delimiter,
// and the quoted form lexes as a single string token.
func TestQuoteRoundTrip(t *testing.T) {
	var all []byte
	for c := byte(0x20); c < 0x7f; c++ {
		all = append(all, c)
	}
	inputs := []string{"", string(all), `say "hi" and 'bye'`, `\\`, "tab\there", "nl\nthere"}
	for _, in := range inputs {
		for _, d := range []byte{'"', '\''} {
			q := Quote(in, d)
			got, err := Unquote(q)
			if err != nil {
				t.Fatalf("Unquote(Quote(%q)): %v", in, err)
			}
			if got != in {
				t.Errorf("round trip %q via %c = %q", in, d, got)
			}
			f, err := ParseString(q + "\n")
			if err != nil {
				t.Fatalf("parse %s: %v", q, err)
			}
			if say := f.Statements[0].(*Say); say.What.Value != in {
				t.Errorf("parsed value %q, want %q", say.What.Value, in)
			}
		}
	}
}

// A parsed literal re-quoted with its own delimiter reproduces the source text.
func TestParsedLiteralRequotes(t *testing.T) {
	raws := []string{
		`"plain"`,
		`"a\%b"`,
		`"{b}\%kept{/b}"`,
		`"100\% sure \[not a tag]"`,
		`"a\"b"`,
		`"back\\slash"`,
		`"trailing\\"`,
		`"\\n is not a newline"`,
		`"line\nbreak\ttab"`,
		`"single ' inside"`,
		`'it\'s'`,
		`'say "hi"'`,
		`'a\%b'`,
	}
	for _, raw := range raws {
		f, err := ParseString("e " + raw + "\n")
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		say := f.Statements[0].(*Say)
		if say.What.Raw != raw {
			t.Fatalf("Raw = %s, want %s", say.What.Raw, raw)
		}
		if got := Quote(say.What.Value, raw[0]); got != raw {
			t.Errorf("Quote(%q) = %s, want %s", say.What.Value, got, raw)
		}
	}
}

// Optional escapes are dropped when a value is re-quoted; the value itself is unchanged.
func TestRequoteDropsOptionalEscapes(t *testing.T) {
	cases := []struct{ raw, want string }{
		{`"it\'s"`, `"it's"`},
		{`'say \"hi\"'`, `'say "hi"'`},
		{"\"a\tb\"", `"a\tb"`},
	}
	for _, tc := range cases {
		v, err := Unquote(tc.raw)
		if err != nil {
			t.Fatalf("Unquote(%s): %v", tc.raw, err)
		}
		got := Quote(v, tc.raw[0])
		if got != tc.want {
			t.Errorf("Quote(Unquote(%s)) = %s, want %s", tc.raw, got, tc.want)
		}
		if back, _ := Unquote(got); back != v {
			t.Errorf("value changed: %q -> %q", v, back)
		}
	}
}
