// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"context"
	"testing"

	"github.com/omnicore/omnicore/pkg/vector"
)

func newTestStorage(t *testing.T) Store {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider: %v", err)
	}
	return NewStorage(vector.NewStore(provider, 3))
}

func TestStorage_SaveAndGetLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Save(ctx, "thread-1", []byte(`{"step":1}`), "", nil, []float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty checkpoint id")
	}

	got, err := s.GetLatest(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if string(got) != `{"step":1}` {
		t.Errorf("GetLatest = %q, want round-trip of saved content", got)
	}
}

func TestStorage_SaveRejectsUnknownParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Save(ctx, "thread-1", []byte("state"), "does-not-exist", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown parent_checkpoint_id")
	}
}

func TestStorage_ParentChainAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id1, err := s.Save(ctx, "thread-1", []byte("v1"), "", nil, nil)
	if err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	id2, err := s.Save(ctx, "thread-1", []byte("v2"), id1, nil, nil)
	if err != nil {
		t.Fatalf("Save v2: %v", err)
	}
	if _, err := s.Save(ctx, "thread-1", []byte("v3"), id2, nil, nil); err != nil {
		t.Fatalf("Save v3: %v", err)
	}

	history, err := s.History(ctx, "thread-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 checkpoints in history, got %d", len(history))
	}
	if string(history[0]) != "v3" {
		t.Errorf("expected newest-first ordering, got %q first", history[0])
	}

	limited, err := s.History(ctx, "thread-1", 2)
	if err != nil {
		t.Fatalf("History with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to cap at 2, got %d", len(limited))
	}
}

func TestStorage_GetByIDUnknownErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.GetByID(ctx, "nonexistent"); err == nil {
		t.Fatal("expected error for unknown checkpoint id")
	}
}

func TestStorage_Count(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Save(ctx, "thread-1", []byte("a"), "", nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(ctx, "thread-2", []byte("b"), "", nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := s.Count(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count(thread-1) = %d, want 1", n)
	}
}

func TestStorage_DeleteThreadRemovesAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Save(ctx, "thread-1", []byte("a"), "", nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(ctx, "thread-1", []byte("b"), "", nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := s.DeleteThread(ctx, "thread-1")
	if err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteThread removed %d, want 2", n)
	}

	count, err := s.Count(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after delete = %d, want 0", count)
	}
}

func TestStorage_SearchSimilarOnlyReturnsEmbedded(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Save(ctx, "thread-1", []byte("with-embedding"), "", nil, []float32{1, 0, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(ctx, "thread-1", []byte("without-embedding"), "", nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := s.SearchSimilar(ctx, []float32{1, 0, 0}, "thread-1", 10, nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	for _, r := range results {
		if string(r.Content) == "without-embedding" {
			t.Errorf("expected checkpoint with no embedding to be excluded from similarity search")
		}
	}
}
