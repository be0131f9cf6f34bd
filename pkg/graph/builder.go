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
	"fmt"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/runner"
)

// Builder accumulates nodes and edges, per spec.md §4.I's fluent builder,
// before Compile produces an executable Graph.
type Builder struct {
	nodes       map[NodeID]*node
	order       []NodeID
	edges       map[NodeID][]NodeID
	conditional map[NodeID]*conditionalEdge
	entry       NodeID
	err         error
}

// NewBuilder starts an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:       make(map[NodeID]*node),
		edges:       make(map[NodeID][]NodeID),
		conditional: make(map[NodeID]*conditionalEdge),
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// AddSkillNode registers a node that dispatches to a skill command via
// pkg/runner.
func (b *Builder) AddSkillNode(cfg SkillNodeConfig) *Builder {
	if cfg.Name == "" {
		return b.fail(fmt.Errorf("graph: skill node requires a name"))
	}
	if _, exists := b.nodes[cfg.Name]; exists {
		return b.fail(fmt.Errorf("graph: duplicate node %q", cfg.Name))
	}
	b.nodes[cfg.Name] = &node{id: cfg.Name, kind: kindSkill, skl: cfg}
	b.order = append(b.order, cfg.Name)
	return b
}

// AddFunctionNode registers a pure logic node.
func (b *Builder) AddFunctionNode(name NodeID, fn FunctionNode) *Builder {
	if name == "" {
		return b.fail(fmt.Errorf("graph: function node requires a name"))
	}
	if _, exists := b.nodes[name]; exists {
		return b.fail(fmt.Errorf("graph: duplicate node %q", name))
	}
	if fn == nil {
		return b.fail(fmt.Errorf("graph: function node %q requires a function", name))
	}
	b.nodes[name] = &node{id: name, kind: kindFunction, fn: fn}
	b.order = append(b.order, name)
	return b
}

// AddEdge adds a plain edge from -> to. Multiple plain edges out of the
// same node that are not gated by a conditional edge are run as a
// parallel fan-out (spec.md §4.I).
func (b *Builder) AddEdge(from, to NodeID) *Builder {
	b.edges[from] = append(b.edges[from], to)
	return b
}

// AddSequence chains each node to the next, equivalent to the teacher's
// SequentialAgent (a LoopAgent with MaxIterations=1): a fixed, strict
// execution order.
func (b *Builder) AddSequence(nodes ...NodeID) *Builder {
	for i := 0; i+1 < len(nodes); i++ {
		b.AddEdge(nodes[i], nodes[i+1])
	}
	return b
}

// AddConditionalEdges routes from's successor dynamically: selector(state)
// yields a label, and routes[label] (or END) names the next node.
func (b *Builder) AddConditionalEdges(from NodeID, selector func(State) string, routes map[string]NodeID) *Builder {
	if selector == nil {
		return b.fail(fmt.Errorf("graph: conditional edges from %q require a selector", from))
	}
	b.conditional[from] = &conditionalEdge{from: from, selector: selector, routes: routes}
	return b
}

// SetEntryPoint names the node execution starts from.
func (b *Builder) SetEntryPoint(name NodeID) *Builder {
	b.entry = name
	return b
}

// CompileOptions configures interrupt gates at Compile time.
type CompileOptions struct {
	InterruptBefore []NodeID
	InterruptAfter  []NodeID

	// MaxSteps bounds the number of execution rounds, guarding against
	// a conditional-edge cycle that never reaches END; default 1000,
	// mirroring the teacher's LoopConfig.MaxIterations safety valve.
	MaxSteps int
}

// Deps are the executor's external collaborators.
type Deps struct {
	Runner *runner.Runner
	Hooks  *checkpoint.CheckpointHooks
	Embed  EmbedFunc

	// Observability instruments each node execution with an OTel span.
	// May be nil, leaving the graph uninstrumented.
	Observability *observability.Manager
}

// Compile validates the accumulated nodes/edges and produces an
// executable Graph.
func (b *Builder) Compile(opts CompileOptions, deps Deps) (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.entry == "" {
		return nil, fmt.Errorf("graph: no entry point set")
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("graph: entry point %q is not a declared node", b.entry)
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("graph: a runner is required")
	}

	for from, targets := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from undeclared node %q", from)
		}
		for _, to := range targets {
			if to != END {
				if _, ok := b.nodes[to]; !ok {
					return nil, fmt.Errorf("graph: edge to undeclared node %q", to)
				}
			}
		}
	}
	for from, ce := range b.conditional {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edges from undeclared node %q", from)
		}
		for label, to := range ce.routes {
			if to != END {
				if _, ok := b.nodes[to]; !ok {
					return nil, fmt.Errorf("graph: conditional route %q -> undeclared node %q", label, to)
				}
			}
		}
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1000
	}

	g := &Graph{
		nodes:           b.nodes,
		edges:           b.edges,
		conditional:     b.conditional,
		entry:           b.entry,
		interruptBefore: toSet(opts.InterruptBefore),
		interruptAfter:  toSet(opts.InterruptAfter),
		maxSteps:        maxSteps,
		runner:          deps.Runner,
		hooks:           deps.Hooks,
		embed:           deps.Embed,
		obs:             deps.Observability,
		cancel:          make(map[string]chan struct{}),
	}
	return g, nil
}

func toSet(ids []NodeID) map[NodeID]bool {
	out := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
