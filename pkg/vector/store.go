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

import (
	"context"
	"fmt"
)

// Row is a single record to upsert into a table.
type Row struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// SearchResult is a single vector-only search hit.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// HybridResult is a single fused vector+keyword search hit.
type HybridResult struct {
	ID       string
	Score    float64
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Store is the batched, table-oriented vector store surface used by the
// rest of the runtime (indexer, router, checkpoint store). It wraps a
// lower-level, per-id Provider with batching, an in-process keyword index
// for hybrid search, and RRF fusion.
type Store interface {
	Upsert(ctx context.Context, table string, rows []Row) error
	Delete(ctx context.Context, table string, ids []string, where map[string]any) error
	SearchVector(ctx context.Context, table string, query []float32, limit int, filter map[string]any) ([]SearchResult, error)
	SearchHybrid(ctx context.Context, table string, query []float32, keywords []string, limit int) ([]HybridResult, error)
	SearchKeyword(ctx context.Context, table string, keywords []string, limit int) ([]HybridResult, error)
	DropTable(ctx context.Context, table string) error
}

// providerStore implements Store on top of a Provider plus a keyword index.
type providerStore struct {
	provider  Provider
	keywords  *keywordIndex
	dimension int
}

// NewStore wraps provider into a batched Store. dimension is used when a
// table is encountered for the first time and must be created.
func NewStore(provider Provider, dimension int) Store {
	return &providerStore{
		provider:  provider,
		keywords:  newKeywordIndex(),
		dimension: dimension,
	}
}

func (s *providerStore) ensureTable(ctx context.Context, table string) error {
	return s.provider.CreateCollection(ctx, table, s.dimension)
}

func (s *providerStore) Upsert(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureTable(ctx, table); err != nil {
		return fmt.Errorf("ensure table %q: %w", table, err)
	}

	for _, row := range rows {
		metadata := row.Metadata
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["content"] = row.Content

		// A row with no vector (e.g. a checkpoint saved without an
		// embedding) has nothing for a similarity backend to index: every
		// Provider here computes cosine similarity against a real query
		// vector, so skip the provider write rather than fabricate one.
		// The row still enters the keyword index, so hybrid/keyword search
		// can still find it even with no embedding.
		if len(row.Vector) > 0 {
			if err := s.provider.Upsert(ctx, table, row.ID, row.Vector, metadata); err != nil {
				return fmt.Errorf("upsert row %q into %q: %w", row.ID, table, err)
			}
		}
		s.keywords.index(table, row.ID, row.Content)
	}
	return nil
}

func (s *providerStore) Delete(ctx context.Context, table string, ids []string, where map[string]any) error {
	for _, id := range ids {
		if err := s.provider.Delete(ctx, table, id); err != nil {
			return fmt.Errorf("delete row %q from %q: %w", id, table, err)
		}
		s.keywords.Delete(table, id)
	}

	if len(where) > 0 {
		if err := s.provider.DeleteByFilter(ctx, table, where); err != nil {
			return fmt.Errorf("delete by filter from %q: %w", table, err)
		}
	}
	return nil
}

func (s *providerStore) SearchVector(ctx context.Context, table string, query []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	var results []Result
	var err error
	if len(filter) > 0 {
		results, err = s.provider.SearchWithFilter(ctx, table, query, limit, filter)
	} else {
		results, err = s.provider.Search(ctx, table, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search vector in %q: %w", table, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{ID: r.ID, Score: r.Score, Content: r.Content, Vector: r.Vector, Metadata: r.Metadata}
	}
	return out, nil
}

func (s *providerStore) SearchHybrid(ctx context.Context, table string, query []float32, keywords []string, limit int) ([]HybridResult, error) {
	// Over-fetch both legs so fusion has enough candidates to re-rank
	// before truncating to the caller's limit.
	fetchLimit := limit * 4
	if fetchLimit < limit {
		fetchLimit = limit
	}

	vectorResults, err := s.provider.Search(ctx, table, query, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("search vector leg of hybrid search in %q: %w", table, err)
	}

	keywordHits := s.keywords.search(table, keywords, fetchLimit)

	return rrfFuse(vectorResults, keywordHits, limit), nil
}

// SearchKeyword is the keyword-only leg of hybrid search, used for the
// Hybrid Router's "exact" intent: a query that looks like a literal
// skill.command id gains nothing from embedding and re-ranking, so it
// skips the vector leg entirely.
func (s *providerStore) SearchKeyword(ctx context.Context, table string, keywords []string, limit int) ([]HybridResult, error) {
	hits := s.keywords.search(table, keywords, limit)
	out := make([]HybridResult, len(hits))
	for i, h := range hits {
		out[i] = HybridResult{ID: h.ID, Score: h.Score}
	}
	return out, nil
}

func (s *providerStore) DropTable(ctx context.Context, table string) error {
	if err := s.provider.DeleteCollection(ctx, table); err != nil {
		return fmt.Errorf("drop table %q: %w", table, err)
	}
	s.keywords.DropTable(table)
	return nil
}
