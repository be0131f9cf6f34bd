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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omnicore/omnicore/pkg/observability"
)

// nodeInstruments are this node's OTel metric instruments: call counts
// labeled by outcome, a per-call latency histogram, and a circuit-state
// gauge, per spec.md's Subprocess Pool observability requirements.
type nodeInstruments struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
	circuit metric.Int64Gauge
}

func newNodeInstruments(meter metric.Meter) (*nodeInstruments, error) {
	calls, err := meter.Int64Counter("swarm_node_calls_total",
		metric.WithDescription("Total call_tool invocations per node, labeled by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("swarm_node_call_latency_seconds",
		metric.WithDescription("call_tool latency per node"))
	if err != nil {
		return nil, err
	}
	circuit, err := meter.Int64Gauge("swarm_node_circuit_open",
		metric.WithDescription("1 if a node's circuit breaker is currently open, 0 otherwise"))
	if err != nil {
		return nil, err
	}
	return &nodeInstruments{calls: calls, latency: latency, circuit: circuit}, nil
}

// SetObservability attaches obs to n, building this node's instruments
// against obs's Prometheus-backed meter. Safe to call with a nil obs, which
// leaves n uninstrumented.
func (n *Node) SetObservability(obs *observability.Manager) error {
	if obs == nil {
		return nil
	}
	instr, err := newNodeInstruments(obs.Meter("swarm"))
	if err != nil {
		return err
	}
	n.stateMu.Lock()
	n.instr = instr
	n.stateMu.Unlock()
	return nil
}

func (n *Node) recordCallMetric(ctx context.Context, outcome string, d time.Duration) {
	n.stateMu.Lock()
	instr := n.instr
	n.stateMu.Unlock()
	if instr == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("node", n.cfg.Name),
		attribute.String("outcome", outcome),
	)
	instr.calls.Add(ctx, 1, attrs)
	instr.latency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("node", n.cfg.Name)))
}

func (n *Node) recordCircuitMetric(ctx context.Context, open bool) {
	n.stateMu.Lock()
	instr := n.instr
	n.stateMu.Unlock()
	if instr == nil {
		return
	}
	v := int64(0)
	if open {
		v = 1
	}
	instr.circuit.Record(ctx, v, metric.WithAttributes(attribute.String("node", n.cfg.Name)))
}
