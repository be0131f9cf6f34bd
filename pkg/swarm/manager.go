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

package swarm

import (
	"context"
	"fmt"
	"sync"

	"github.com/omnicore/omnicore/pkg/observability"
)

// Manager owns the full set of worker nodes and routes call_tool/
// list_tools/health_check by node name. It holds no call-path logic of its
// own beyond lookup: each Node exclusively owns and mediates its own
// subprocess handle, per spec.md §3's ownership rule.
type Manager struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	obs   *observability.Manager
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{nodes: make(map[string]*Node)}
}

// SetObservability attaches obs to m, instrumenting every currently
// registered node and every node registered afterward. Safe to call with a
// nil obs, which leaves nodes uninstrumented.
func (m *Manager) SetObservability(obs *observability.Manager) error {
	m.mu.Lock()
	m.obs = obs
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	m.mu.Unlock()

	for _, n := range nodes {
		if err := n.SetObservability(obs); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a node under cfg.Name, replacing any prior node of the
// same name (closing it first).
func (m *Manager) Register(cfg Config) (*Node, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("swarm: node name is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("swarm: node %s: command is required", cfg.Name)
	}

	node := NewNode(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.nodes[cfg.Name]; ok {
		existing.Close()
	}
	if err := node.SetObservability(m.obs); err != nil {
		return nil, err
	}
	m.nodes[cfg.Name] = node
	return node, nil
}

// GetNode looks up a registered node by name.
func (m *Manager) GetNode(name string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[name]
	return n, ok
}

// CallTool resolves node and dispatches call_tool to it.
func (m *Manager) CallTool(ctx context.Context, node, name string, args map[string]any) (map[string]any, error) {
	n, ok := m.GetNode(node)
	if !ok {
		return nil, fmt.Errorf("swarm: unknown node %q", node)
	}
	return n.CallTool(ctx, name, args)
}

// ListTools resolves node and lists its tools.
func (m *Manager) ListTools(ctx context.Context, node string) ([]string, error) {
	n, ok := m.GetNode(node)
	if !ok {
		return nil, fmt.Errorf("swarm: unknown node %q", node)
	}
	return n.ListTools(ctx)
}

// RestartNode force-resets a node's circuit and session.
func (m *Manager) RestartNode(name string) error {
	n, ok := m.GetNode(name)
	if !ok {
		return fmt.Errorf("swarm: unknown node %q", name)
	}
	n.Restart()
	return nil
}

// SystemHealth runs HealthCheck across every registered node and returns
// the per-node boolean result set.
func (m *Manager) SystemHealth(ctx context.Context) map[string]bool {
	m.mu.RLock()
	names := make([]string, 0, len(m.nodes))
	nodes := make([]*Node, 0, len(m.nodes))
	for name, n := range m.nodes {
		names = append(names, name)
		nodes = append(nodes, n)
	}
	m.mu.RUnlock()

	out := make(map[string]bool, len(names))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, n := range nodes {
		wg.Add(1)
		go func(name string, n *Node) {
			defer wg.Done()
			ok := n.HealthCheck(ctx)
			mu.Lock()
			out[name] = ok
			mu.Unlock()
		}(names[i], n)
	}
	wg.Wait()
	return out
}

// States returns a snapshot of every registered node's NodeState, keyed by
// name.
func (m *Manager) States() map[string]NodeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]NodeState, len(m.nodes))
	for name, n := range m.nodes {
		out[name] = n.State()
	}
	return out
}

// Close shuts down every registered node.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, n := range m.nodes {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
