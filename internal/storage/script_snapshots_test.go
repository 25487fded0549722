/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptSnapshotsFollowChanges(t *testing.T) {
	p := newTestProject(t, map[string]string{"game/a.rpy": "label a:\n    \"one\"\n"})
	ctx := context.Background()

	_, err := IndexProject(ctx, p, IndexOptions{})
	require.NoError(t, err)
	_, err = IndexProject(ctx, p, IndexOptions{Force: true})
	require.NoError(t, err)
	list, err := ListScriptSnapshots(ctx, p, "game/a.rpy", 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "a forced reindex of identical text adds no snapshot")

	for _, text := range []string{"two", "three", "four"} {
		writeScript(t, p.Root, "game/a.rpy", "label a:\n    \""+text+"\"\n")
		_, err = IndexProject(ctx, p, IndexOptions{KeepSnapshots: 3})
		require.NoError(t, err)
	}
	list, err = ListScriptSnapshots(ctx, p, "game/a.rpy", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Contains(t, list[0].Text, "four")
	assert.Contains(t, list[2].Text, "two")
	assert.Equal(t, HashContent([]byte(list[0].Text)), list[0].Hash)
	assert.False(t, list[0].TS.IsZero())

	latest, ok, err := LatestScriptSnapshot(ctx, p, "game/a.rpy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, list[0].ID, latest.ID)

	_, ok, err = LatestScriptSnapshot(ctx, p, "game/missing.rpy")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := PruneOldScriptSnapshots(ctx, p, "game/a.rpy", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRestoreScriptSnapshot(t *testing.T) {
	p := newTestProject(t, map[string]string{"game/a.rpy": "label a:\n    \"first\"\n"})
	ctx := context.Background()
	_, err := IndexProject(ctx, p, IndexOptions{})
	require.NoError(t, err)
	first, ok, err := LatestScriptSnapshot(ctx, p, "game/a.rpy")
	require.NoError(t, err)
	require.True(t, ok)

	writeScript(t, p.Root, "game/a.rpy", "label a:\n    \"second\"\n")
	path, err := RestoreScriptSnapshot(ctx, p, first.ID)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first.Text, string(b))

	baks, err := filepath.Glob(filepath.Join(p.StateDir, BackupsDirName, "a.rpy.*.bak"))
	require.NoError(t, err)
	assert.Len(t, baks, 1)

	_, err = RestoreScriptSnapshot(ctx, p, 9999)
	assert.Error(t, err)
}
