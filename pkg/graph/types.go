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

// Package graph is the Workflow Graph Executor (component I): a fluent
// builder compiles node/edge declarations into a checkpointed
// state-machine runtime, generalizing the teacher's
// pkg/agent/workflowagent.{Sequential,Parallel,Loop} idiom (sequence as
// loop-of-one, parallel as errgroup fan-out) into a dynamic graph with
// conditional routing and interrupt_before/interrupt_after
// Human-in-the-Loop gates.
package graph

import "context"

// NodeID names a node in the graph.
type NodeID string

// END is the sentinel target a conditional route maps to when that
// branch should terminate instead of continuing to another node.
const END NodeID = "__end__"

// State is the single mapping threaded through every node. Each node
// returns a partial State that is shallow-merged into the running state,
// except for the "messages" key, which is treated as append-only.
type State map[string]any

// Clone returns a shallow copy of s, safe to hand to a node as its input
// snapshot without letting the node mutate the caller's copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FunctionNode is a pure logic node: it receives the current state
// snapshot and returns the partial state to merge in.
type FunctionNode func(ctx context.Context, state State) (State, error)

// SkillNodeConfig declares a node that invokes a skill command via
// pkg/runner (spec.md §4.H) instead of running Go code directly.
type SkillNodeConfig struct {
	// Name is the node's identifier in the graph.
	Name NodeID

	// Skill and Command select the command via runner.Run.
	Skill   string
	Command string

	// FixedArgs are merged over the current state snapshot to build the
	// command's args; FixedArgs wins on key collisions.
	FixedArgs map[string]any

	// StateOutputMapping remaps result keys to state keys
	// (result key -> state key). When nil, the whole result is merged
	// into state under the generic merge rules.
	StateOutputMapping map[string]string
}

type nodeKind int

const (
	kindSkill nodeKind = iota
	kindFunction
)

type node struct {
	id   NodeID
	kind nodeKind
	skl  SkillNodeConfig
	fn   FunctionNode
}

// conditionalEdge is the compiled form of add_conditional_edges: after
// from runs, selector(state) produces a label, and routes[label] names
// the next node (or END).
type conditionalEdge struct {
	from     NodeID
	selector func(State) string
	routes   map[string]NodeID
}

// Status is the terminal or suspended disposition of a single Run/Resume
// call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// RunResult is returned by Start and Resume.
type RunResult struct {
	ThreadID     string
	Status       Status
	State        State
	CheckpointID string

	// PendingNodes names the nodes scheduled to run next when Status is
	// StatusSuspended; Resume re-derives its starting frontier from this.
	PendingNodes []NodeID

	Err error
}

// EmbedFunc computes an embedding vector for checkpoint content, enabling
// CheckpointHooks' semantic recall (spec.md §4.C). A nil EmbedFunc still
// checkpoints correctly; it just leaves embeddings empty, which only
// disables semantic search over that thread's history.
type EmbedFunc func(ctx context.Context, content []byte) ([]float32, error)
