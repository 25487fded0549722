/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage indexes a directory of script files.
// It discovers scripts under a project root, parses them in parallel and keeps a
// per‑project embedded SQLite index at <project>/.gorenpy/index.sqlite with the
// labels, dialogue, definitions and jump targets found in every file, an FTS5
// search table, the last parse error per file and a short text history.
// The index is derived from the scripts and is rebuildable/disposable by design.
package storage
