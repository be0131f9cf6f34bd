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

func TestRRFFuse_CombinesBothLegs(t *testing.T) {
	vectorResults := []Result{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
	}
	keywordHits := []keywordHit{
		{ID: "a", Score: 5},
		{ID: "c", Score: 3},
	}

	fused := rrfFuse(vectorResults, keywordHits, 10)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results (union of both legs), got %d", len(fused))
	}
	if fused[0].ID != "a" {
		t.Errorf("expected 'a' (rank 1 in both legs) to score highest, got %q", fused[0].ID)
	}
}

func TestRRFFuse_RespectsLimit(t *testing.T) {
	vectorResults := []Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	fused := rrfFuse(vectorResults, nil, 2)
	if len(fused) != 2 {
		t.Errorf("expected limit of 2 to be respected, got %d", len(fused))
	}
}

func TestRRFFuse_VectorOnlyMatch(t *testing.T) {
	vectorResults := []Result{{ID: "a", Content: "hello"}}
	fused := rrfFuse(vectorResults, nil, 10)
	if len(fused) != 1 {
		t.Fatalf("expected 1 result, got %d", len(fused))
	}
	if fused[0].Content != "hello" {
		t.Errorf("expected content to carry through from vector leg, got %q", fused[0].Content)
	}
}
