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
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// DefaultConnectTimeout bounds how long a single connect() attempt may
	// take before it is abandoned.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultExecuteTimeout bounds a single tool invocation.
	DefaultExecuteTimeout = 120 * time.Second
	// DefaultMaxRetries is the retry budget consumed by transport/RPC
	// errors before the circuit trips.
	DefaultMaxRetries = 2
	// DefaultRetryCooldown is the pause between a closed session and the
	// next reconnect attempt.
	DefaultRetryCooldown = 500 * time.Millisecond
	// DefaultCircuitCooldown is how long call_tool refuses the node once
	// the retry budget is exhausted.
	DefaultCircuitCooldown = 30 * time.Second

	// pingTool is the reserved health-check method name; nodes that don't
	// implement it are reported unhealthy but never trip the breaker.
	pingTool = "ping"
)

// Config describes one worker process and its resilience budget.
type Config struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string

	ConnectTimeout  time.Duration
	ExecuteTimeout  time.Duration
	MaxRetries      int
	RetryCooldown   time.Duration
	CircuitCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ExecuteTimeout <= 0 {
		c.ExecuteTimeout = DefaultExecuteTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryCooldown <= 0 {
		c.RetryCooldown = DefaultRetryCooldown
	}
	if c.CircuitCooldown <= 0 {
		c.CircuitCooldown = DefaultCircuitCooldown
	}
	return c
}

// Node owns exactly one worker subprocess handle and mediates every call
// to it, per spec.md §3's ownership rule for the Subprocess Pool. callMu
// serializes calls (one in-flight call per node); stateMu guards the
// connection/circuit/metrics fields so State() can be read concurrently
// with an in-flight call.
type Node struct {
	cfg Config

	callMu sync.Mutex
	client *client.Client

	stateMu          sync.Mutex
	conn             ConnState
	circuitOpenUntil time.Time
	metrics          Metrics
	instr            *nodeInstruments
}

// NewNode builds a Node in the Disconnected state. The subprocess is not
// started until the first CallTool/ListTools/HealthCheck call.
func NewNode(cfg Config) *Node {
	return &Node{cfg: cfg.withDefaults(), conn: Disconnected}
}

// State returns a snapshot of the node's circuit/connection/metrics state.
func (n *Node) State() NodeState {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return NodeState{
		Name:             n.cfg.Name,
		Conn:             n.effectiveConnLocked(),
		Connected:        n.effectiveConnLocked() == Connected,
		CircuitOpenUntil: n.circuitOpenUntil,
		Metrics:          n.metrics,
	}
}

// effectiveConnLocked reports CircuitOpen in place of whatever conn holds
// whenever the breaker is still tripped, implementing the Data Model §3
// invariant that connected reports false while now() < circuit_open_until
// regardless of the subprocess's actual liveness.
func (n *Node) effectiveConnLocked() ConnState {
	if time.Now().Before(n.circuitOpenUntil) {
		return CircuitOpen
	}
	return n.conn
}

func (n *Node) circuitTripped() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return time.Now().Before(n.circuitOpenUntil)
}

func (n *Node) isConnected() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.conn == Connected
}

// CallTool executes the §4.G call_tool algorithm: circuit check, lazy
// connect under a connect-timeout, execute-timeout-bounded invocation,
// EWMA latency tracking on success, and a bounded retry-then-trip sequence
// on transport/RPC failure.
func (n *Node) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	n.callMu.Lock()
	defer n.callMu.Unlock()

	if n.circuitTripped() {
		return nil, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if !n.isConnected() {
			connectCtx, cancel := context.WithTimeout(ctx, n.cfg.ConnectTimeout)
			err := n.connect(connectCtx)
			cancel()
			if err != nil {
				n.recordFailure(ctx, err)
				return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, n.cfg.Name, err)
			}
		}

		execCtx, cancel := context.WithTimeout(ctx, n.cfg.ExecuteTimeout)
		start := time.Now()
		result, err := n.invoke(execCtx, name, args)
		cancel()

		if err == nil {
			n.recordSuccess(ctx, time.Since(start))
			return result, nil
		}

		if _, ok := err.(*HandlerError); ok {
			n.recordFailure(ctx, err)
			return nil, err
		}

		lastErr = err
		n.closeSession()

		if attempt < n.cfg.MaxRetries {
			select {
			case <-time.After(n.cfg.RetryCooldown):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	n.tripCircuit(ctx, lastErr)
	return nil, lastErr
}

// ListTools follows the same connect/execute discipline as CallTool but
// never trips the breaker; a failure degrades to an empty list.
func (n *Node) ListTools(ctx context.Context) ([]string, error) {
	n.callMu.Lock()
	defer n.callMu.Unlock()

	if !n.isConnected() {
		connectCtx, cancel := context.WithTimeout(ctx, n.cfg.ConnectTimeout)
		err := n.connect(connectCtx)
		cancel()
		if err != nil {
			return nil, nil
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, n.cfg.ExecuteTimeout)
	defer cancel()

	resp, err := n.client.ListTools(execCtx, mcp.ListToolsRequest{})
	if err != nil {
		n.closeSession()
		return nil, nil
	}

	names := make([]string, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// HealthCheck pings the reserved "ping" tool with no retries. Nodes that
// don't expose ping are reported unhealthy but the breaker is left alone.
func (n *Node) HealthCheck(ctx context.Context) bool {
	n.callMu.Lock()
	defer n.callMu.Unlock()

	if n.circuitTripped() {
		return false
	}
	if !n.isConnected() {
		connectCtx, cancel := context.WithTimeout(ctx, n.cfg.ConnectTimeout)
		err := n.connect(connectCtx)
		cancel()
		if err != nil {
			return false
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, n.cfg.ExecuteTimeout)
	defer cancel()
	_, err := n.invoke(execCtx, pingTool, nil)
	return err == nil
}

// connect starts the subprocess and performs the MCP initialize handshake.
// Callers must hold callMu.
func (n *Node) connect(ctx context.Context) error {
	n.stateMu.Lock()
	n.conn = Connecting
	n.stateMu.Unlock()

	mcpClient, err := client.NewStdioMCPClient(n.cfg.Command, n.convertEnv(), n.cfg.Args...)
	if err != nil {
		n.stateMu.Lock()
		n.conn = Disconnected
		n.stateMu.Unlock()
		return fmt.Errorf("create client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		n.stateMu.Lock()
		n.conn = Disconnected
		n.stateMu.Unlock()
		return fmt.Errorf("start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "omni-swarm", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		n.stateMu.Lock()
		n.conn = Disconnected
		n.stateMu.Unlock()
		return fmt.Errorf("initialize: %w", err)
	}

	n.client = mcpClient

	n.stateMu.Lock()
	n.conn = Connected
	n.stateMu.Unlock()

	slog.Info("swarm node connected", "node", n.cfg.Name, "command", n.cfg.Command)
	return nil
}

// invoke performs one tools/call over an already-connected session. A
// tool result flagged IsError becomes a HandlerError with CodeBadArgs and
// the first text content as its message; an error from the client call
// itself (transport or JSON-RPC) is returned unchanged, and its JSON-RPC
// code is not inspected or mapped.
func (n *Node) invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if n.client == nil {
		return nil, fmt.Errorf("swarm: node %s not connected", n.cfg.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := n.client.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any)
	if resp.IsError {
		msg := "unknown error"
		for _, c := range resp.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				msg = tc.Text
				break
			}
		}
		return nil, &HandlerError{Code: CodeBadArgs, Message: msg}
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result, nil
}

// closeSession tears down the subprocess handle and marks the node
// Disconnected, without touching circuit/metrics state.
func (n *Node) closeSession() {
	n.stateMu.Lock()
	n.conn = Disconnected
	n.stateMu.Unlock()

	if n.client != nil {
		n.client.Close()
		n.client = nil
	}
}

// recordSuccess updates the EWMA latency (alpha=0.1, matching the
// original swarm's moving average) and success counters.
func (n *Node) recordSuccess(ctx context.Context, d time.Duration) {
	n.stateMu.Lock()
	n.metrics.TotalCalls++
	n.metrics.SuccessCount++
	ms := float64(d.Microseconds()) / 1000.0
	if n.metrics.AvgLatencyMs == 0 {
		n.metrics.AvgLatencyMs = ms
	} else {
		n.metrics.AvgLatencyMs = n.metrics.AvgLatencyMs*0.9 + ms*0.1
	}
	n.stateMu.Unlock()
	n.recordCallMetric(ctx, "success", d)
}

// recordFailure updates failure counters without tripping the circuit;
// callers trip it separately via tripCircuit once the retry budget runs
// out.
func (n *Node) recordFailure(ctx context.Context, err error) {
	n.stateMu.Lock()
	n.metrics.TotalCalls++
	n.metrics.FailureCount++
	n.metrics.LastFailureAt = time.Now()
	n.metrics.LastError = err.Error()
	n.stateMu.Unlock()
	n.recordCallMetric(ctx, "failure", 0)
}

// tripCircuit records the failure and opens the breaker for
// CircuitCooldown.
func (n *Node) tripCircuit(ctx context.Context, err error) {
	n.stateMu.Lock()
	n.metrics.TotalCalls++
	n.metrics.FailureCount++
	if err != nil {
		n.metrics.LastFailureAt = time.Now()
		n.metrics.LastError = err.Error()
	}
	n.circuitOpenUntil = time.Now().Add(n.cfg.CircuitCooldown)
	n.stateMu.Unlock()
	n.recordCallMetric(ctx, "failure", 0)
	n.recordCircuitMetric(ctx, true)
}

// Restart force-closes the session and clears the circuit, counted as a
// restart in metrics. The next call reconnects lazily.
func (n *Node) Restart() {
	n.callMu.Lock()
	defer n.callMu.Unlock()
	n.closeSession()
	n.stateMu.Lock()
	n.metrics.Restarts++
	n.circuitOpenUntil = time.Time{}
	n.stateMu.Unlock()
	n.recordCircuitMetric(context.Background(), false)
}

// Close tears down the node permanently.
func (n *Node) Close() error {
	n.callMu.Lock()
	defer n.callMu.Unlock()
	if n.client != nil {
		err := n.client.Close()
		n.client = nil
		n.stateMu.Lock()
		n.conn = Disconnected
		n.stateMu.Unlock()
		return err
	}
	return nil
}

// convertEnv builds the worker's environment per spec.md §4.G: the host
// environment is inherited, the worker script's own directory is added to
// its import search path, an unbuffered-I/O flag is set so stdout framing
// isn't delayed by libc buffering, and the node's scoped overrides are
// applied last so they win.
func (n *Node) convertEnv() []string {
	result := os.Environ()
	result = append(result, "PYTHONUNBUFFERED=1")
	if dir := filepath.Dir(n.cfg.Command); dir != "." && dir != "" {
		result = append(result, "PYTHONPATH="+dir+string(os.PathListSeparator)+os.Getenv("PYTHONPATH"))
	}
	for k, v := range n.cfg.Env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}
