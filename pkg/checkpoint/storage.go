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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnicore/omnicore/pkg/vector"
)

// checkpointsTable is the Vector Store table all checkpoints live in.
const checkpointsTable = "checkpoints"

// Store is the checkpoint persistence surface, built on top of the
// Vector Store with table "checkpoints" and an index on thread_id.
type Store interface {
	// Save persists content for thread, optionally chained off
	// parentCheckpointID, and returns the new checkpoint's id.
	Save(ctx context.Context, threadID string, content []byte, parentCheckpointID string, metadata map[string]any, embedding []float32) (string, error)

	// GetLatest returns the most recent checkpoint's content for thread,
	// or nil if thread has no checkpoints.
	GetLatest(ctx context.Context, threadID string) ([]byte, error)

	// GetByID returns a specific checkpoint's content.
	GetByID(ctx context.Context, checkpointID string) ([]byte, error)

	// History returns up to limit checkpoints' content for thread,
	// newest first.
	History(ctx context.Context, threadID string, limit int) ([][]byte, error)

	// SearchSimilar ranks checkpoints with a non-nil embedding by distance
	// to queryVec, optionally restricted to one thread.
	SearchSimilar(ctx context.Context, queryVec []float32, threadID string, limit int, filter map[string]any) ([]SimilarRow, error)

	// DeleteThread atomically removes every checkpoint belonging to
	// thread and returns how many were removed.
	DeleteThread(ctx context.Context, threadID string) (int, error)

	// Count returns the number of checkpoints for thread.
	Count(ctx context.Context, threadID string) (int, error)
}

// storage implements Store on top of a vector.Store.
type storage struct {
	store vector.Store

	// seq is a per-store save counter hashed into every checkpoint id, so
	// two saves of the same (thread, parent, content) tuple get distinct ids.
	seq atomic.Int64

	// byThread indexes checkpoint ids per thread in save order, and
	// content caches each checkpoint's bytes by id. Both are kept in
	// memory alongside the durable vector.Store write: ordering and
	// exact-id lookup are correctness-sensitive here (the round-trip law
	// save→get_latest must return the saved bytes exactly), not just
	// similarity ranking, which is all a vector backend's filter
	// semantics can promise.
	mu       sync.RWMutex
	byThread map[string][]string
	parent   map[string]string
	content  map[string][]byte
}

// NewStorage wraps store as a checkpoint Store. store should already be
// scoped so that other tables do not collide with "checkpoints".
func NewStorage(store vector.Store) Store {
	return &storage{
		store:    store,
		byThread: make(map[string][]string),
		parent:   make(map[string]string),
		content:  make(map[string][]byte),
	}
}

func (s *storage) Save(ctx context.Context, threadID string, content []byte, parentCheckpointID string, metadata map[string]any, embedding []float32) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("thread_id is required")
	}

	if parentCheckpointID != "" {
		if _, err := s.GetByID(ctx, parentCheckpointID); err != nil {
			return "", fmt.Errorf("checkpoint conflict: parent_checkpoint_id %q not found: %w", parentCheckpointID, err)
		}
	}

	seq := s.seq.Add(1)
	id := newCheckpointID(threadID, parentCheckpointID, content, int(seq))
	now := time.Now()

	meta := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["thread_id"] = threadID
	meta["parent_checkpoint_id"] = parentCheckpointID
	meta["timestamp"] = now.Format(time.RFC3339Nano)

	row := vector.Row{
		ID:       id,
		Vector:   embedding,
		Content:  string(content),
		Metadata: meta,
	}
	if err := s.store.Upsert(ctx, checkpointsTable, []vector.Row{row}); err != nil {
		return "", fmt.Errorf("save checkpoint for thread %q: %w", threadID, err)
	}

	s.mu.Lock()
	s.byThread[threadID] = append(s.byThread[threadID], id)
	s.parent[id] = parentCheckpointID
	s.content[id] = content
	s.mu.Unlock()

	return id, nil
}

func (s *storage) GetLatest(ctx context.Context, threadID string) ([]byte, error) {
	s.mu.RLock()
	ids := s.byThread[threadID]
	s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, ids[len(ids)-1])
}

// GetByID serves from the in-memory content cache rather than the Vector
// Store: the store's Search/SearchWithFilter methods rank by cosine
// similarity to a query vector, which has no sound degenerate case for an
// exact-id lookup. The upsert into the Vector Store still gives each
// checkpoint a durable, embeddable row for SearchSimilar.
func (s *storage) GetByID(ctx context.Context, checkpointID string) ([]byte, error) {
	s.mu.RLock()
	content, ok := s.content[checkpointID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("checkpoint %q not found", checkpointID)
	}
	return content, nil
}

func (s *storage) History(ctx context.Context, threadID string, limit int) ([][]byte, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.byThread[threadID]...)
	s.mu.RUnlock()

	// Reverse to newest-first; ids are stored in save order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		content, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, nil
}

func (s *storage) SearchSimilar(ctx context.Context, queryVec []float32, threadID string, limit int, filter map[string]any) ([]SimilarRow, error) {
	where := make(map[string]any, len(filter)+1)
	for k, v := range filter {
		where[k] = v
	}
	if threadID != "" {
		where["thread_id"] = threadID
	}

	results, err := s.store.SearchVector(ctx, checkpointsTable, queryVec, limit, where)
	if err != nil {
		return nil, fmt.Errorf("search similar checkpoints: %w", err)
	}

	out := make([]SimilarRow, 0, len(results))
	for _, r := range results {
		out = append(out, SimilarRow{
			Row: Row{
				CheckpointID: r.ID,
				Content:      []byte(r.Content),
				Metadata:     r.Metadata,
			},
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

func (s *storage) DeleteThread(ctx context.Context, threadID string) (int, error) {
	s.mu.Lock()
	ids := s.byThread[threadID]
	delete(s.byThread, threadID)
	for _, id := range ids {
		delete(s.parent, id)
		delete(s.content, id)
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, checkpointsTable, ids, nil); err != nil {
		return 0, fmt.Errorf("delete thread %q: %w", threadID, err)
	}
	return len(ids), nil
}

func (s *storage) Count(ctx context.Context, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byThread[threadID]), nil
}
