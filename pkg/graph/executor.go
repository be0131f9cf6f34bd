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

package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/runner"
)

// Graph is a compiled Workflow Graph Executor. It is safe for concurrent
// use across distinct thread_ids; a single thread_id must not be driven
// by concurrent Start/Resume/Cancel calls.
type Graph struct {
	nodes           map[NodeID]*node
	edges           map[NodeID][]NodeID
	conditional     map[NodeID]*conditionalEdge
	entry           NodeID
	interruptBefore map[NodeID]bool
	interruptAfter  map[NodeID]bool
	maxSteps        int

	runner *runner.Runner
	hooks  *checkpoint.CheckpointHooks
	embed  EmbedFunc
	obs    *observability.Manager

	mu     sync.Mutex
	cancel map[string]chan struct{}
}

// Start begins a new thread: emits the graph-start checkpoint, then runs
// from the entry point.
func (g *Graph) Start(ctx context.Context, threadID string, initial State) (*RunResult, error) {
	state := initial.Clone()
	cancelCh := g.registerThread(threadID)
	defer g.unregisterThread(threadID)

	content, embedding, err := g.contentAndEmbedding(ctx, state)
	if err != nil {
		return nil, err
	}
	parentID, err := g.hooks.OnGraphStart(ctx, threadID, content, embedding)
	if err != nil {
		return nil, err
	}

	return g.run(ctx, threadID, []NodeID{g.entry}, state, parentID, 0, cancelCh, false)
}

// Resume continues a suspended thread from pendingNodes (the frontier
// captured at suspension) with state restored from a checkpoint, per
// spec.md §4.I's "resuming continues from that node". Callers typically
// obtain pendingNodes and state from the RunResult a prior Start/Resume
// returned with StatusSuspended.
//
// The interrupt_before gate that caused the suspension is bypassed for
// this first round only: its job was to stop exactly one arrival at that
// node, and Resume exists precisely to let that arrival proceed. A later
// arrival at the same node (e.g. via a conditional-edge cycle back to it)
// is gated again, since bypass only applies to step 0.
func (g *Graph) Resume(ctx context.Context, threadID string, pendingNodes []NodeID, state State, parentCheckpointID string) (*RunResult, error) {
	if len(pendingNodes) == 0 {
		pendingNodes = []NodeID{g.entry}
	}
	cancelCh := g.registerThread(threadID)
	defer g.unregisterThread(threadID)

	return g.run(ctx, threadID, pendingNodes, state.Clone(), parentCheckpointID, 0, cancelCh, true)
}

// Cancel requests cooperative cancellation of threadID: the node
// currently executing runs to completion, but no further nodes are
// scheduled, and a final checkpoint marks state "cancelled".
func (g *Graph) Cancel(threadID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ch, ok := g.cancel[threadID]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

func (g *Graph) registerThread(threadID string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.cancel[threadID] = ch
	return ch
}

func (g *Graph) unregisterThread(threadID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cancel, threadID)
}

// run drives the frontier-based execution loop: at each round, the nodes
// in frontier are ready to execute (a frontier of size >1 is a parallel
// fan-out, run with errgroup). interrupt_before is checked before a round
// runs; interrupt_after is checked after. Termination is an empty
// frontier (every branch reached a node with no outgoing edges or a
// conditional route to END). bypassInterruptBefore skips the
// interrupt_before check for the first round only, used by Resume to
// proceed past the gate that caused the suspension being resumed.
func (g *Graph) run(ctx context.Context, threadID string, frontier []NodeID, state State, parentCheckpointID string, step int, cancelCh <-chan struct{}, bypassInterruptBefore bool) (*RunResult, error) {
	for {
		select {
		case <-cancelCh:
			return g.finishCancelled(ctx, threadID, state, parentCheckpointID)
		default:
		}

		if len(frontier) == 0 {
			return g.finishCompleted(ctx, threadID, state, parentCheckpointID)
		}

		if step >= g.maxSteps {
			return nil, fmt.Errorf("graph: thread %q exceeded %d steps without reaching end", threadID, g.maxSteps)
		}

		if !bypassInterruptBefore {
			if interrupting := g.filterInterruptBefore(frontier); len(interrupting) > 0 {
				return g.finishSuspended(ctx, threadID, state, parentCheckpointID, frontier)
			}
		}
		bypassInterruptBefore = false

		partials, err := g.runFrontier(ctx, frontier, state)
		if err != nil {
			g.finishError(ctx, threadID, state, parentCheckpointID, err)
			return &RunResult{ThreadID: threadID, Status: StatusFailed, State: state, Err: err}, err
		}
		state = mergeAll(state, partials)

		next := g.nextFrontier(frontier, state)

		if g.anyInterruptAfter(frontier) {
			content, embedding, err := g.contentAndEmbedding(ctx, state)
			if err != nil {
				return nil, err
			}
			id, err := g.hooks.AfterNode(ctx, threadID, parentCheckpointID, content, string(frontier[0]), embedding)
			if err != nil {
				return nil, err
			}
			parentCheckpointID = id
		}

		frontier = next
		step++
	}
}

func (g *Graph) runFrontier(ctx context.Context, frontier []NodeID, state State) ([]State, error) {
	if len(frontier) == 1 {
		out, err := g.runNode(ctx, frontier[0], state.Clone())
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", frontier[0], err)
		}
		return []State{out}, nil
	}

	type frontierResult struct {
		state State
		err   error
	}
	resultsCh := make(chan frontierResult, len(frontier))
	grp, gctx := errgroup.WithContext(ctx)
	for _, id := range frontier {
		id := id
		snapshot := state.Clone()
		grp.Go(func() error {
			out, err := g.runNode(gctx, id, snapshot)
			if err != nil {
				err = fmt.Errorf("node %q: %w", id, err)
			}
			resultsCh <- frontierResult{state: out, err: err}
			return err
		})
	}
	go func() {
		_ = grp.Wait()
		close(resultsCh)
	}()

	var ordered []State
	var firstErr error
	for res := range resultsCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		ordered = append(ordered, res.state)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return ordered, nil
}

func (g *Graph) runNode(ctx context.Context, id NodeID, state State) (State, error) {
	ctx, span := g.obs.Tracer().Start(ctx, observability.SpanGraphNode,
		trace.WithAttributes(attribute.String("graph.node_id", string(id))))
	defer span.End()

	out, err := g.executeNode(ctx, id, state)
	if err != nil {
		g.obs.Tracer().RecordError(span, err)
	}
	return out, err
}

func (g *Graph) executeNode(ctx context.Context, id NodeID, state State) (State, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}

	switch n.kind {
	case kindFunction:
		return n.fn(ctx, state)
	case kindSkill:
		args := make(map[string]any, len(state)+len(n.skl.FixedArgs))
		for k, v := range state {
			args[k] = v
		}
		for k, v := range n.skl.FixedArgs {
			args[k] = v
		}
		result, err := g.runner.Run(ctx, n.skl.Skill, n.skl.Command, args)
		if err != nil {
			return nil, err
		}
		if len(n.skl.StateOutputMapping) == 0 {
			return State(result), nil
		}
		mapped := make(State, len(n.skl.StateOutputMapping))
		for resultKey, stateKey := range n.skl.StateOutputMapping {
			if v, ok := result[resultKey]; ok {
				mapped[stateKey] = v
			}
		}
		return mapped, nil
	default:
		return nil, fmt.Errorf("graph: node %q has unknown kind", id)
	}
}

// nextFrontier resolves each just-executed node's successor(s): a
// conditional edge picks exactly one route (or terminates the branch on
// an unmatched label, same as routing to END); a plain edge set runs
// every listed target concurrently next round. Targets are deduplicated
// in first-seen order across the whole frontier.
func (g *Graph) nextFrontier(frontier []NodeID, state State) []NodeID {
	seen := make(map[NodeID]bool)
	var next []NodeID
	for _, id := range frontier {
		var targets []NodeID
		if ce, ok := g.conditional[id]; ok {
			label := ce.selector(state)
			if to, ok := ce.routes[label]; ok {
				targets = []NodeID{to}
			}
		} else {
			targets = g.edges[id]
		}
		for _, t := range targets {
			if t == END || seen[t] {
				continue
			}
			seen[t] = true
			next = append(next, t)
		}
	}
	return next
}

func (g *Graph) filterInterruptBefore(frontier []NodeID) []NodeID {
	var out []NodeID
	for _, id := range frontier {
		if g.interruptBefore[id] {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) anyInterruptAfter(frontier []NodeID) bool {
	for _, id := range frontier {
		if g.interruptAfter[id] {
			return true
		}
	}
	return false
}

func (g *Graph) contentAndEmbedding(ctx context.Context, state State) ([]byte, []float32, error) {
	content, err := json.Marshal(state)
	if err != nil {
		return nil, nil, fmt.Errorf("graph: marshal state: %w", err)
	}
	if g.embed == nil {
		return content, nil, nil
	}
	embedding, err := g.embed(ctx, content)
	if err != nil {
		return content, nil, nil
	}
	return content, embedding, nil
}

func (g *Graph) finishCompleted(ctx context.Context, threadID string, state State, parentCheckpointID string) (*RunResult, error) {
	content, embedding, err := g.contentAndEmbedding(ctx, state)
	if err != nil {
		return nil, err
	}
	id, err := g.hooks.OnComplete(ctx, threadID, parentCheckpointID, content, embedding)
	if err != nil {
		return nil, err
	}
	return &RunResult{ThreadID: threadID, Status: StatusCompleted, State: state, CheckpointID: id}, nil
}

func (g *Graph) finishSuspended(ctx context.Context, threadID string, state State, parentCheckpointID string, pending []NodeID) (*RunResult, error) {
	content, embedding, err := g.contentAndEmbedding(ctx, state)
	if err != nil {
		return nil, err
	}
	id, err := g.hooks.OnInterrupt(ctx, threadID, parentCheckpointID, content, string(pending[0]), embedding)
	if err != nil {
		return nil, err
	}
	return &RunResult{ThreadID: threadID, Status: StatusSuspended, State: state, CheckpointID: id, PendingNodes: pending}, nil
}

func (g *Graph) finishCancelled(ctx context.Context, threadID string, state State, parentCheckpointID string) (*RunResult, error) {
	state = state.Clone()
	state["status"] = "cancelled"
	content, embedding, err := g.contentAndEmbedding(ctx, state)
	if err != nil {
		return nil, err
	}
	id, err := g.hooks.OnComplete(ctx, threadID, parentCheckpointID, content, embedding)
	if err != nil {
		return nil, err
	}
	return &RunResult{ThreadID: threadID, Status: StatusCancelled, State: state, CheckpointID: id}, nil
}

func (g *Graph) finishError(ctx context.Context, threadID string, state State, parentCheckpointID string, runErr error) {
	content, embedding, err := g.contentAndEmbedding(ctx, state)
	if err != nil {
		return
	}
	_, _ = g.hooks.OnError(ctx, threadID, parentCheckpointID, content, runErr, embedding)
}

// mergeAll shallow-merges each partial state into base, in order, per
// spec.md §4.I ("concurrent nodes' partial states are merged in arrival
// order"); partials is already in completion order for a parallel
// frontier (see runFrontier).
func mergeAll(base State, partials []State) State {
	out := base.Clone()
	for _, p := range partials {
		out = mergeOne(out, p)
	}
	return out
}

// mergeOne applies one partial state on top of base. "messages" is
// append-only; every other key overwrites.
func mergeOne(base, partial State) State {
	out := base.Clone()
	for k, v := range partial {
		if k == "messages" {
			out[k] = appendMessages(out[k], v)
			continue
		}
		out[k] = v
	}
	return out
}

// appendMessages concatenates existing and incoming as slices, preserving
// each contributor's own ordering within the result (spec.md §4.I's
// per-node ordering guarantee for parallel fan-out).
func appendMessages(existing, incoming any) any {
	return append(toSlice(existing), toSlice(incoming)...)
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}
