// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import "testing"

func TestKeywordIndex_SearchRanksByFrequency(t *testing.T) {
	idx := newKeywordIndex()
	idx.index("docs", "a", "go go go concurrency")
	idx.index("docs", "b", "go routines")
	idx.index("docs", "c", "python threading")

	hits := idx.search("docs", []string{"go"}, 10)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for 'go', got %d", len(hits))
	}
	if hits[0].ID != "a" {
		t.Errorf("expected doc 'a' (3 occurrences) to rank first, got %q", hits[0].ID)
	}
}

func TestKeywordIndex_DeleteRemovesPostings(t *testing.T) {
	idx := newKeywordIndex()
	idx.index("docs", "a", "unique term")
	idx.Delete("docs", "a")

	hits := idx.search("docs", []string{"unique"}, 10)
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(hits))
	}
}

func TestKeywordIndex_ReindexReplacesOldTerms(t *testing.T) {
	idx := newKeywordIndex()
	idx.index("docs", "a", "alpha")
	idx.index("docs", "a", "beta")

	if hits := idx.search("docs", []string{"alpha"}, 10); len(hits) != 0 {
		t.Errorf("expected old term to be gone after reindex, got %d hits", len(hits))
	}
	if hits := idx.search("docs", []string{"beta"}, 10); len(hits) != 1 {
		t.Errorf("expected new term to be indexed, got %d hits", len(hits))
	}
}

func TestKeywordIndex_DropTable(t *testing.T) {
	idx := newKeywordIndex()
	idx.index("docs", "a", "hello world")
	idx.DropTable("docs")

	if hits := idx.search("docs", []string{"hello"}, 10); len(hits) != 0 {
		t.Errorf("expected empty table after DropTable, got %d hits", len(hits))
	}
}

func TestKeywordIndex_Limit(t *testing.T) {
	idx := newKeywordIndex()
	for _, id := range []string{"a", "b", "c", "d"} {
		idx.index("docs", id, "shared term")
	}

	hits := idx.search("docs", []string{"shared"}, 2)
	if len(hits) != 2 {
		t.Errorf("expected search to respect limit of 2, got %d", len(hits))
	}
}
