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

// Package checkpoint provides workflow state capture and recovery.
//
// # Architecture
//
// A checkpoint is a single row in the Vector Store's "checkpoints" table:
// {checkpoint_id, thread_id, parent_checkpoint_id, content, metadata,
// timestamp, embedding}. content is a canonical-JSON serialization of the
// workflow graph's state (pkg/graph.State). This keeps the 3-layer shape
// of the teacher's original checkpoint system (Manager orchestrates,
// Storage persists, a snapshot type is the unit of persistence) but
// re-points it at workflow threads instead of single-agent executions:
// there is no session.Service here, no per-agent AgentStateSnapshot — a
// checkpoint exists purely to let a workflow graph resume a thread_id
// from its last (or an arbitrary prior) state.
//
// # Recovery Flow
//
//	graph.run(input) creates thread_id, runs nodes, checkpoints at
//	start/interrupt/end. graph.resume(thread_id) loads the latest
//	checkpoint for that thread and continues from the node after it.
//	interrupt_before nodes persist a checkpoint and suspend — this is
//	the Human-in-the-Loop gate.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Phase represents the workflow moment a checkpoint was taken at.
type Phase string

const (
	PhaseStart     Phase = "start"
	PhasePreNode   Phase = "pre_node"
	PhasePostNode  Phase = "post_node"
	PhaseInterrupt Phase = "interrupt"
	PhaseInterval  Phase = "interval"
	PhaseError     Phase = "error"
	PhaseComplete  Phase = "complete"
	PhaseLesson    Phase = "lesson"
)

// Row is a single persisted checkpoint.
type Row struct {
	CheckpointID       string         `json:"checkpoint_id"`
	ThreadID           string         `json:"thread_id"`
	ParentCheckpointID string         `json:"parent_checkpoint_id,omitempty"`
	Content            []byte         `json:"content"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
	Embedding          []float32      `json:"-"`
	Phase              Phase          `json:"phase,omitempty"`
	Error              string         `json:"error,omitempty"`
}

// SimilarRow is a checkpoint returned by a similarity search, annotated
// with its distance from the query vector.
type SimilarRow struct {
	Row
	Distance float32
}

// CanonicalJSON serializes v using sorted map keys and no extraneous
// whitespace, so that repeated saves of byte-identical workflow state
// produce byte-identical content (the round-trip law checkpoint.save then
// checkpoint.get_latest depends on).
func CanonicalJSON(v any) ([]byte, error) {
	// encoding/json already sorts map[string]any keys when marshaling, so
	// a plain Marshal is canonical for the map-shaped state this package
	// persists.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize checkpoint content: %w", err)
	}
	return data, nil
}

// newCheckpointID derives a checkpoint id by hashing thread, parent, content
// and the store's save counter seq. Because seq differs on every save,
// re-saving identical state yields a new id rather than the previous one.
func newCheckpointID(threadID, parentID string, content []byte, seq int) string {
	h := sha256.New()
	h.Write([]byte(threadID))
	h.Write([]byte{0})
	h.Write([]byte(parentID))
	h.Write([]byte{0})
	h.Write(content)
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", seq)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
