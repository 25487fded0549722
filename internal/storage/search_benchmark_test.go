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
	"fmt"
	"strings"
	"testing"
)

func benchProject(b *testing.B) *Project {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "label l%d:\n    e \"Hello world benchmark %d\"\n    jump l%d\n", i, i, i+1)
	}
	return newTestProject(b, map[string]string{"game/script.rpy": sb.String()})
}

func BenchmarkSearchFTS(b *testing.B) {
	p := benchProject(b)
	ctx := context.Background()
	if _, err := IndexProject(ctx, p, IndexOptions{}); err != nil {
		b.Fatalf("IndexProject: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Search(ctx, p, SearchQuery{Text: "Hello"}); err != nil {
			b.Fatalf("Search: %v", err)
		}
	}
}

func BenchmarkRebuildIndex(b *testing.B) {
	p := benchProject(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := RebuildIndex(ctx, p, IndexOptions{}); err != nil {
			b.Fatalf("RebuildIndex: %v", err)
		}
	}
}
