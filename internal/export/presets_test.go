/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorenpy/internal/config"
	"gorenpy/internal/script"
	"gorenpy/internal/storage"
)

func sampleProject(t *testing.T, files map[string]string) *storage.Project {
	t.Helper()
	root := t.TempDir()
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	p, err := storage.OpenProject(root, config.Defaults())
	require.NoError(t, err)
	return p
}

func TestBatchExport_DataPreset(t *testing.T) {
	p := sampleProject(t, map[string]string{"game/script.rpy": sampleScript, "game/ending.rpy": "label ending:\n    return\n"})
	res, err := BatchExport(context.Background(), p, BatchOptions{Preset: PresetData, Validate: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root, "exports", "data"), res.OutDir)
	assert.Len(t, res.Written, 4)

	b, err := os.ReadFile(filepath.Join(res.OutDir, "json", "game", "script.rpy.json"))
	require.NoError(t, err)
	require.NoError(t, Validate(b))

	c, err := os.ReadFile(filepath.Join(res.OutDir, "cbor", "game", "ending.rpy.cbor"))
	require.NoError(t, err)
	tree, err := UnmarshalCBOR(c)
	require.NoError(t, err)
	assert.Equal(t, "game/ending.rpy", tree.File)
}

func TestBatchExport_PrintPreset(t *testing.T) {
	p := sampleProject(t, map[string]string{"script.rpy": sampleScript})
	out := t.TempDir()
	res, err := BatchExport(context.Background(), p, BatchOptions{Preset: PresetPrint, OutDir: out})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "pdf", "script.pdf")}, res.Written)
	st, err := os.Stat(res.Written[0])
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestBatchExport_StopsOnParseError(t *testing.T) {
	p := sampleProject(t, map[string]string{"bad.rpy": "label start:\n    e \"unterminated\n"})
	_, err := BatchExport(context.Background(), p, BatchOptions{})
	require.Error(t, err)
	var se *script.Error
	assert.True(t, errors.As(err, &se))
}

func TestWriteTree_CBORReadBack(t *testing.T) {
	f, err := script.ParseString(sampleScript)
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "cbor", "script.rpy.cbor")
	require.NoError(t, writeTree(out, "cbor", FromScript("script.rpy", f), true))
	_, err = os.Stat(out)
	require.NoError(t, err)

	bad := FromScript("script.rpy", f)
	bad.Format = "other"
	other := filepath.Join(t.TempDir(), "bad.cbor")
	err = writeTree(other, "cbor", bad, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read back")
	_, statErr := os.Stat(other)
	assert.True(t, os.IsNotExist(statErr), "nothing is written when the read back fails")

	require.NoError(t, writeTree(other, "cbor", bad, false))
}

func TestBatchExport_UnknownFormat(t *testing.T) {
	p := sampleProject(t, map[string]string{"a.rpy": "pass\n"})
	_, err := BatchExport(context.Background(), p, BatchOptions{Formats: []string{"epub"}})
	assert.Error(t, err)
}
