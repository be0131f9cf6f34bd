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
	"log/slog"

	"github.com/omnicore/omnicore/pkg/vector"
)

// Manager orchestrates checkpointing for a workflow graph: when to save,
// and policy around which lifecycle moments are worth persisting.
//
// Unlike the teacher's original Manager, which owned a *Storage bound to one
// session.Service, this Manager holds a Store interface over pkg/vector and
// is shared across every thread the graph executor runs — a checkpoint is
// identified by thread_id, not by (app, user, session, task).
type Manager struct {
	config  *Config
	storage Store
}

// NewManager creates a Manager backed by store. cfg may be nil, in which
// case checkpointing defaults to disabled.
func NewManager(cfg *Config, store vector.Store) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()

	return &Manager{
		config:  cfg,
		storage: NewStorage(store),
	}
}

// IsEnabled returns whether checkpointing is enabled.
func (m *Manager) IsEnabled() bool {
	return m.config.IsEnabled()
}

// Config returns the checkpoint configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// ShouldCheckpointAtIteration returns whether to checkpoint at the given iteration.
func (m *Manager) ShouldCheckpointAtIteration(iteration int) bool {
	return m.config.ShouldCheckpointAtIteration(iteration)
}

// ShouldCheckpointAfterTools returns whether to checkpoint after a node's
// tool/skill invocations complete.
func (m *Manager) ShouldCheckpointAfterTools() bool {
	return m.config.ShouldCheckpointAfterTools()
}

// ShouldCheckpointBeforeLLM returns whether to checkpoint before an LLM call.
func (m *Manager) ShouldCheckpointBeforeLLM() bool {
	return m.config.ShouldCheckpointBeforeLLM()
}

// Save persists content for threadID if checkpointing is enabled, returning
// the new checkpoint's id. Save is a no-op (empty id, nil error) when
// checkpointing is disabled, so callers can invoke it unconditionally.
func (m *Manager) Save(ctx context.Context, threadID string, content []byte, parentCheckpointID string, phase Phase, embedding []float32) (string, error) {
	if !m.IsEnabled() {
		return "", nil
	}
	return m.storage.Save(ctx, threadID, content, parentCheckpointID, map[string]any{"phase": string(phase)}, embedding)
}

// GetLatest returns threadID's most recent checkpoint content, or nil if
// none exists.
func (m *Manager) GetLatest(ctx context.Context, threadID string) ([]byte, error) {
	return m.storage.GetLatest(ctx, threadID)
}

// GetByID returns a specific checkpoint's content.
func (m *Manager) GetByID(ctx context.Context, checkpointID string) ([]byte, error) {
	return m.storage.GetByID(ctx, checkpointID)
}

// History returns up to limit checkpoints for threadID, newest first.
func (m *Manager) History(ctx context.Context, threadID string, limit int) ([][]byte, error) {
	return m.storage.History(ctx, threadID, limit)
}

// SearchSimilar ranks checkpoints by similarity to queryVec.
func (m *Manager) SearchSimilar(ctx context.Context, queryVec []float32, threadID string, limit int, filter map[string]any) ([]SimilarRow, error) {
	return m.storage.SearchSimilar(ctx, queryVec, threadID, limit, filter)
}

// DeleteThread removes every checkpoint belonging to threadID.
func (m *Manager) DeleteThread(ctx context.Context, threadID string) (int, error) {
	return m.storage.DeleteThread(ctx, threadID)
}

// Count returns the number of checkpoints for threadID.
func (m *Manager) Count(ctx context.Context, threadID string) (int, error) {
	return m.storage.Count(ctx, threadID)
}

// CheckpointHooks wires the Workflow Graph Executor's node lifecycle to
// checkpoint persistence: a checkpoint is emitted at graph start, at every
// interrupt_before/interrupt_after boundary, at graph end, and at any node
// that explicitly calls ctx.checkpoint(). The hook names are kept from the
// teacher's LLM/tool-call lifecycle almost verbatim — they are the same
// shape of "before/after a suspension point", just re-pointed at graph
// nodes instead of LLM calls and tool executions.
type CheckpointHooks struct {
	manager *Manager
}

// NewCheckpointHooks creates hooks for graph executor integration.
func NewCheckpointHooks(manager *Manager) *CheckpointHooks {
	if manager == nil {
		return nil
	}
	return &CheckpointHooks{manager: manager}
}

// OnGraphStart checkpoints the initial state before any node runs.
func (h *CheckpointHooks) OnGraphStart(ctx context.Context, threadID string, content []byte, embedding []float32) (string, error) {
	if h == nil || !h.manager.IsEnabled() {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, "", PhaseStart, embedding)
	if err != nil {
		slog.Warn("failed to save graph start checkpoint", "thread_id", threadID, "error", err)
	}
	return id, err
}

// BeforeNode checkpoints before scheduling a node in an interrupt_before list.
func (h *CheckpointHooks) BeforeNode(ctx context.Context, threadID, parentCheckpointID string, content []byte, node string, embedding []float32) (string, error) {
	if h == nil || !h.manager.ShouldCheckpointBeforeLLM() {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, parentCheckpointID, PhasePreNode, embedding)
	if err != nil {
		slog.Warn("failed to save pre-node checkpoint", "thread_id", threadID, "node", node, "error", err)
	}
	return id, err
}

// AfterNode checkpoints after a node completes, for interrupt_after boundaries.
func (h *CheckpointHooks) AfterNode(ctx context.Context, threadID, parentCheckpointID string, content []byte, node string, embedding []float32) (string, error) {
	if h == nil || !h.manager.ShouldCheckpointAfterTools() {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, parentCheckpointID, PhasePostNode, embedding)
	if err != nil {
		slog.Warn("failed to save post-node checkpoint", "thread_id", threadID, "node", node, "error", err)
	}
	return id, err
}

// OnInterrupt checkpoints and suspends the graph at an interrupt_before gate,
// the Human-in-the-Loop suspension point.
func (h *CheckpointHooks) OnInterrupt(ctx context.Context, threadID, parentCheckpointID string, content []byte, node string, embedding []float32) (string, error) {
	if h == nil || !h.manager.IsEnabled() {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, parentCheckpointID, PhaseInterrupt, embedding)
	if err != nil {
		slog.Warn("failed to save interrupt checkpoint", "thread_id", threadID, "node", node, "error", err)
	}
	return id, err
}

// OnIntervalTick checkpoints at an interval boundary (every N iterations).
func (h *CheckpointHooks) OnIntervalTick(ctx context.Context, threadID, parentCheckpointID string, content []byte, iteration int, embedding []float32) (string, error) {
	if h == nil || !h.manager.ShouldCheckpointAtIteration(iteration) {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, parentCheckpointID, PhaseInterval, embedding)
	if err != nil {
		slog.Warn("failed to save interval checkpoint", "thread_id", threadID, "iteration", iteration, "error", err)
	}
	return id, err
}

// OnError checkpoints state at the point of failure.
func (h *CheckpointHooks) OnError(ctx context.Context, threadID, parentCheckpointID string, content []byte, graphErr error, embedding []float32) (string, error) {
	if h == nil || !h.manager.IsEnabled() {
		return "", nil
	}
	id, err := h.manager.storage.Save(ctx, threadID, content, parentCheckpointID, map[string]any{
		"phase": string(PhaseError),
		"error": graphErr.Error(),
	}, embedding)
	if err != nil {
		slog.Warn("failed to save error checkpoint", "thread_id", threadID, "original_error", graphErr, "save_error", err)
	}
	return id, err
}

// OnLesson records a harvested lesson (a tool that failed then succeeded
// within the same session) alongside threadID's checkpoint lineage, so it
// can later be recalled via SearchSimilar. tool, failedAttempt and
// successfulAttempt are embedded into the checkpoint's metadata rather than
// its content, mirroring OnError's direct-metadata pattern: a lesson is an
// annotation on the session's history, not a snapshot of its state.
func (h *CheckpointHooks) OnLesson(ctx context.Context, threadID, parentCheckpointID string, content []byte, tool, failedAttempt, successfulAttempt string, embedding []float32) (string, error) {
	if h == nil || !h.manager.IsEnabled() {
		return "", nil
	}
	id, err := h.manager.storage.Save(ctx, threadID, content, parentCheckpointID, map[string]any{
		"phase":              string(PhaseLesson),
		"lesson_tool":        tool,
		"failed_attempt":     failedAttempt,
		"successful_attempt": successfulAttempt,
	}, embedding)
	if err != nil {
		slog.Warn("failed to save lesson checkpoint", "thread_id", threadID, "tool", tool, "error", err)
	}
	return id, err
}

// OnComplete checkpoints the graph's final state.
func (h *CheckpointHooks) OnComplete(ctx context.Context, threadID, parentCheckpointID string, content []byte, embedding []float32) (string, error) {
	if h == nil || !h.manager.IsEnabled() {
		return "", nil
	}
	id, err := h.manager.Save(ctx, threadID, content, parentCheckpointID, PhaseComplete, embedding)
	if err != nil {
		slog.Warn("failed to save completion checkpoint", "thread_id", threadID, "error", err)
	}
	return id, err
}
