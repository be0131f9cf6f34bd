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

import "sort"

// rrfK is the Reciprocal Rank Fusion rank-damping constant. 60 is the
// value used by the original retriever's fusion pass and the de facto
// default across hybrid search implementations.
const rrfK = 60.0

const (
	rrfWeightVector  = 1.0
	rrfWeightKeyword = 1.5
)

// rrfFuse combines a vector-ranked result list and a keyword-ranked hit
// list into one ranked HybridResult list using weighted Reciprocal Rank
// Fusion: final_score = sum_s weight_s / (k + rank_s(id)), rank 1-based.
func rrfFuse(vectorResults []Result, keywordHits []keywordHit, limit int) []HybridResult {
	scores := make(map[string]float64)
	byID := make(map[string]Result)

	for rank, r := range vectorResults {
		scores[r.ID] += rrfWeightVector / (rrfK + float64(rank+1))
		byID[r.ID] = r
	}
	for rank, h := range keywordHits {
		scores[h.ID] += rrfWeightKeyword / (rrfK + float64(rank+1))
		if _, ok := byID[h.ID]; !ok {
			byID[h.ID] = Result{ID: h.ID}
		}
	}

	out := make([]HybridResult, 0, len(scores))
	for id, score := range scores {
		r := byID[id]
		out = append(out, HybridResult{
			ID:       id,
			Score:    score,
			Content:  r.Content,
			Vector:   r.Vector,
			Metadata: r.Metadata,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
