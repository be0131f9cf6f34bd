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
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	provider, err := NewChromemProvider(ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider returned error: %v", err)
	}
	return NewStore(provider, 3)
}

func TestStore_UpsertAndSearchVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []Row{
		{ID: "a", Vector: []float32{1, 0, 0}, Content: "the quick brown fox"},
		{ID: "b", Vector: []float32{0, 1, 0}, Content: "jumps over the lazy dog"},
	}
	if err := store.Upsert(ctx, "docs", rows); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	results, err := store.SearchVector(ctx, "docs", []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("SearchVector returned error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one search result")
	}
	if results[0].ID != "a" {
		t.Errorf("expected closest match 'a', got %q", results[0].ID)
	}
}

func TestStore_SearchHybrid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []Row{
		{ID: "a", Vector: []float32{1, 0, 0}, Content: "reinforcement learning policy gradient"},
		{ID: "b", Vector: []float32{0, 1, 0}, Content: "supervised learning decision tree"},
		{ID: "c", Vector: []float32{0, 0, 1}, Content: "database index btree"},
	}
	if err := store.Upsert(ctx, "docs", rows); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	results, err := store.SearchHybrid(ctx, "docs", []float32{1, 0, 0}, []string{"learning"}, 3)
	if err != nil {
		t.Fatalf("SearchHybrid returned error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected hybrid search results")
	}

	if results[0].ID != "a" {
		t.Errorf("expected 'a' to rank first (matches both vector and keyword leg), got %q", results[0].ID)
	}
}

func TestStore_DeleteAndDropTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []Row{{ID: "a", Vector: []float32{1, 0, 0}, Content: "hello world"}}
	if err := store.Upsert(ctx, "docs", rows); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := store.Delete(ctx, "docs", []string{"a"}, nil); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	results, err := store.SearchVector(ctx, "docs", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("SearchVector returned error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}

	if err := store.DropTable(ctx, "docs"); err != nil {
		t.Fatalf("DropTable returned error: %v", err)
	}
}
