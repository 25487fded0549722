/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorenpy/internal/script"
)

const sampleScript = `label start:
    e happy "Hi!"
    show eileen at left with dissolve
    menu:
        "Go" if ready:
            jump .go
    return
`

func parseSample(t *testing.T) *script.SourceFile {
	t.Helper()
	f, err := script.ParseString(sampleScript)
	require.NoError(t, err)
	return f
}

func TestFromScriptShape(t *testing.T) {
	tree := FromScript("game/script.rpy", parseSample(t))
	assert.Equal(t, TreeFormat, tree.Format)
	assert.Equal(t, TreeVersion, tree.Version)

	want := Node{Kind: "file", Children: []Node{
		{Kind: "label", Attrs: map[string]string{"name": "start"}, Children: []Node{
			{Kind: "say", Attrs: map[string]string{"who": "e", "what": "Hi!", "attributes": "happy"}},
			{Kind: "show", Attrs: map[string]string{"image": "eileen", "with": "dissolve"}, Children: []Node{
				{Kind: "at", Attrs: map[string]string{"value": "left"}},
			}},
			{Kind: "menu", Children: []Node{
				{Kind: "choice", Attrs: map[string]string{"text": "Go", "cond": "ready"}, Children: []Node{
					{Kind: "jump", Attrs: map[string]string{"target": ".go"}},
				}},
			}},
			{Kind: "return"},
		}},
	}}
	ignorePos := cmpopts.IgnoreFields(Node{}, "Start", "End")
	if diff := cmp.Diff(want, tree.Root, ignorePos, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	label := tree.Root.Children[0]
	assert.Equal(t, Position{Line: 1, Col: 1}, label.Start)
	assert.Equal(t, Position{Line: 2, Col: 5}, label.Children[0].Start)
}

func TestFromScriptNil(t *testing.T) {
	tree := FromScript("", nil)
	assert.Equal(t, "file", tree.Root.Kind)
	assert.Empty(t, tree.Root.Children)
}

func TestJSONConformsToSchema(t *testing.T) {
	b, err := MarshalJSON(FromScript("game/script.rpy", parseSample(t)))
	require.NoError(t, err)
	require.NoError(t, Validate(b))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, "gorenpy-tree", generic["format"])
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	tree := FromScript("x.rpy", parseSample(t))
	tree.Root.Children[0].Kind = "scene-change"
	b, err := MarshalJSON(tree)
	require.NoError(t, err)
	err = Validate(b)
	assert.ErrorIs(t, err, ErrInvalidTree)

	assert.Error(t, Validate([]byte("{not json")))
}

func TestCBORRoundTrip(t *testing.T) {
	tree := FromScript("game/script.rpy", parseSample(t))
	b, err := MarshalCBOR(tree)
	require.NoError(t, err)

	again, err := MarshalCBOR(tree)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b, again), "canonical encoding is stable")

	got, err := UnmarshalCBOR(b)
	require.NoError(t, err)
	if diff := cmp.Diff(tree, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("cbor round trip (-want +got):\n%s", diff)
	}
}

func TestUnmarshalCBORChecksFormat(t *testing.T) {
	b, err := MarshalCBOR(Tree{Format: "other", Version: 1})
	require.NoError(t, err)
	_, err = UnmarshalCBOR(b)
	assert.Error(t, err)
}
