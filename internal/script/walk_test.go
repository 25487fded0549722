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

func TestLabels(t *testing.T) {
	f := mustParse(t, demoScript)
	labels := Labels(f)
	require.Len(t, labels, 2)
	assert.Equal(t, "start", labels[0].Name.String())
	assert.Equal(t, ".leave", labels[1].Name.String())
}

func TestWalkDepthAndPruning(t *testing.T) {
	f := mustParse(t, "label a:\n    if x:\n        pass\n    pass\nlabel b:\n    pass\n")
	type visit struct {
		kind  StmtKind
		depth int
	}
	var all []visit
	Walk(f, func(s Statement, depth int) bool {
		all = append(all, visit{s.Kind(), depth})
		return true
	})
	assert.Equal(t, []visit{
		{KindLabel, 0}, {KindIf, 1}, {KindPass, 2}, {KindPass, 1},
		{KindLabel, 0}, {KindPass, 1},
	}, all)

	var top int
	Walk(f, func(s Statement, depth int) bool {
		top++
		return false
	})
	assert.Equal(t, 2, top)
}

func TestOutline(t *testing.T) {
	f := mustParse(t, demoScript)
	type entry struct {
		Depth int
		Text  string
	}
	var got []entry
	for _, e := range Outline(f) {
		got = append(got, entry{e.Depth, e.Text})
	}
	assert.Equal(t, []entry{
		{0, "label start"},
		{1, "menu choose"},
		{2, `"Look around"`},
		{2, `"Leave"`},
		{3, "jump .leave"},
		{0, "label .leave"},
		{1, "if points >= 10"},
		{2, "call ending.good"},
		{1, "elif points > 5"},
		{1, "else"},
		{2, "while points < 5"},
		{3, "return"},
		{1, "return"},
	}, got)
}

func TestDescribe(t *testing.T) {
	f := mustParse(t, "e \"Hi\"\n\"Narrated\"\ndefine x = 1\npass\n")
	var got []string
	for _, s := range f.Statements {
		got = append(got, Describe(s))
	}
	assert.Equal(t, []string{`e says "Hi"`, `narration "Narrated"`, "define x", "pass"}, got)
}
