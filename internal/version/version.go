/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version holds build metadata. Release builds set the variables with
//
//	go build -ldflags "-X gorenpy/internal/version.Version=v1.2.3 -X gorenpy/internal/version.Commit=abc123"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "0.1.0-dev"
	Commit  = ""
)

// String renders the version line printed by `gorenpy version`.
func String() string {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			}
		}
	}
	if commit == "" {
		return fmt.Sprintf("gorenpy %s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
	}
	return fmt.Sprintf("gorenpy %s+%s (%s/%s)", Version, commit, runtime.GOOS, runtime.GOARCH)
}
