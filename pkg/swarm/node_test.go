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
	"errors"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	// A negative MaxRetries selects DefaultMaxRetries; zero is kept as is
	// (see the next test).
	cfg := Config{Name: "n", Command: "/bin/true", MaxRetries: -1}.withDefaults()

	if cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.ExecuteTimeout != DefaultExecuteTimeout {
		t.Errorf("ExecuteTimeout = %v, want %v", cfg.ExecuteTimeout, DefaultExecuteTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.RetryCooldown != DefaultRetryCooldown {
		t.Errorf("RetryCooldown = %v, want %v", cfg.RetryCooldown, DefaultRetryCooldown)
	}
	if cfg.CircuitCooldown != DefaultCircuitCooldown {
		t.Errorf("CircuitCooldown = %v, want %v", cfg.CircuitCooldown, DefaultCircuitCooldown)
	}
}

func TestConfig_WithDefaultsRespectsExplicitMaxRetriesZero(t *testing.T) {
	cfg := Config{Name: "n", Command: "/bin/true", MaxRetries: 0}.withDefaults()
	if cfg.MaxRetries != 0 {
		t.Errorf("explicit MaxRetries=0 should be preserved, got %d", cfg.MaxRetries)
	}
}

func TestNode_StateReportsDisconnectedByDefault(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})
	st := n.State()
	if st.Conn != Disconnected {
		t.Errorf("expected Disconnected, got %s", st.Conn)
	}
	if st.Connected {
		t.Error("expected Connected=false")
	}
}

func TestNode_TripCircuitReportsDisconnectedEvenIfConnFlagSaysConnected(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})

	n.stateMu.Lock()
	n.conn = Connected
	n.stateMu.Unlock()

	n.tripCircuit(context.Background(), errors.New("boom"))

	st := n.State()
	if st.Conn != CircuitOpen {
		t.Errorf("expected CircuitOpen state, got %s", st.Conn)
	}
	if st.Connected {
		t.Error("Connected must report false while the circuit is open, even though conn says Connected")
	}
	if st.Metrics.LastError != "boom" {
		t.Errorf("expected LastError to be recorded, got %q", st.Metrics.LastError)
	}
	if !n.circuitTripped() {
		t.Error("circuitTripped() should report true immediately after tripCircuit")
	}
}

func TestNode_CircuitClearsAfterCooldownElapses(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true", CircuitCooldown: 10 * time.Millisecond})
	n.tripCircuit(context.Background(), errors.New("boom"))

	if !n.circuitTripped() {
		t.Fatal("expected circuit to be tripped immediately")
	}

	time.Sleep(20 * time.Millisecond)

	if n.circuitTripped() {
		t.Error("expected circuit to clear after cooldown elapses")
	}
}

func TestNode_CallToolReturnsCircuitOpenWithoutConnecting(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})
	n.tripCircuit(context.Background(), errors.New("boom"))

	_, err := n.CallTool(context.Background(), "any", nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestNode_RecordSuccessComputesEWMA(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})

	n.recordSuccess(context.Background(), 100*time.Millisecond)
	first := n.State().Metrics.AvgLatencyMs
	if first != 100 {
		t.Fatalf("expected initial AvgLatencyMs=100, got %v", first)
	}

	n.recordSuccess(context.Background(), 200*time.Millisecond)
	second := n.State().Metrics.AvgLatencyMs
	want := first*0.9 + 200*0.1
	if diff := second - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("AvgLatencyMs = %v, want %v", second, want)
	}
}

func TestNode_RecordFailureDoesNotTripCircuit(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})
	n.recordFailure(context.Background(), errors.New("connect refused"))

	if n.circuitTripped() {
		t.Error("a single recordFailure must not trip the circuit; only tripCircuit does")
	}
	if n.State().Metrics.FailureCount != 1 {
		t.Errorf("expected FailureCount=1, got %d", n.State().Metrics.FailureCount)
	}
}

func TestNode_RestartClearsCircuitAndCountsRestart(t *testing.T) {
	n := NewNode(Config{Name: "worker", Command: "/bin/true"})
	n.tripCircuit(context.Background(), errors.New("boom"))

	n.Restart()

	if n.circuitTripped() {
		t.Error("Restart should clear the open circuit")
	}
	if n.State().Metrics.Restarts != 1 {
		t.Errorf("expected Restarts=1, got %d", n.State().Metrics.Restarts)
	}
}

func TestHandlerError_Error(t *testing.T) {
	err := &HandlerError{Code: CodeUnknownTool, Message: "no such tool"}
	if err.Error() != "no such tool" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestConnState_String(t *testing.T) {
	cases := map[ConnState]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		CircuitOpen:  "circuit_open",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
