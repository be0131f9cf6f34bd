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
	"testing"
	"time"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/runner"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/vector"
)

func newTestHooks(t *testing.T) *checkpoint.CheckpointHooks {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider: %v", err)
	}
	enabled := true
	cfg := &checkpoint.Config{Enabled: &enabled, BeforeLLM: &enabled, AfterTools: &enabled}
	manager := checkpoint.NewManager(cfg, vector.NewStore(provider, 3))
	return checkpoint.NewCheckpointHooks(manager)
}

func newTestRunner(t *testing.T) *runner.Runner {
	t.Helper()
	registry := skill.NewRegistry()

	greet, err := skill.NewCommand("greeter", skill.CommandSpec{
		Name:        "hello",
		Description: "Greets the named user.",
	}, func(ctx context.Context, args struct {
		Name string `json:"name"`
	}) (map[string]any, error) {
		return map[string]any{"messages": []any{"hello " + args.Name}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	shout, err := skill.NewCommand("greeter", skill.CommandSpec{
		Name:        "shout",
		Description: "Shouts the named user.",
	}, func(ctx context.Context, args struct {
		Name string `json:"name"`
	}) (map[string]any, error) {
		return map[string]any{"messages": []any{"HELLO " + args.Name}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := registry.Load(skill.Manifest{Name: "greeter", Description: "greets"}, "/bundles/greeter", []*skill.Command{greet, shout}); err != nil {
		t.Fatal(err)
	}

	r, err := runner.New(runner.Config{Registry: registry})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestGraph_SequentialMergesMessages(t *testing.T) {
	b := NewBuilder()
	b.AddSkillNode(SkillNodeConfig{Name: "greet", Skill: "greeter", Command: "hello"})
	b.AddSkillNode(SkillNodeConfig{Name: "shout", Skill: "greeter", Command: "shout"})
	b.AddSequence("greet", "shout")
	b.SetEntryPoint("greet")

	g, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	result, err := g.Start(context.Background(), "thread-seq", State{"name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (err=%v)", result.Status, result.Err)
	}
	msgs, _ := result.State["messages"].([]any)
	if len(msgs) != 2 || msgs[0] != "hello Ada" || msgs[1] != "HELLO Ada" {
		t.Errorf("expected ordered concatenated messages, got %+v", msgs)
	}
}

func TestGraph_ConditionalEdgeRoutesToEnd(t *testing.T) {
	b := NewBuilder()
	b.AddFunctionNode("decide", func(ctx context.Context, state State) (State, error) {
		return State{"decision": "stop"}, nil
	})
	b.AddFunctionNode("never", func(ctx context.Context, state State) (State, error) {
		return State{"reached": true}, nil
	})
	b.AddConditionalEdges("decide", func(s State) string {
		return s["decision"].(string)
	}, map[string]NodeID{"continue": "never", "stop": END})
	b.SetEntryPoint("decide")

	g, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	result, err := g.Start(context.Background(), "thread-cond", State{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if _, reached := result.State["reached"]; reached {
		t.Error("expected the stop route to skip the never node")
	}
}

func TestGraph_ParallelFanOutMergesInCompletionOrder(t *testing.T) {
	b := NewBuilder()
	b.AddFunctionNode("start", func(ctx context.Context, state State) (State, error) {
		return State{}, nil
	})
	b.AddFunctionNode("fast", func(ctx context.Context, state State) (State, error) {
		return State{"messages": []any{"fast"}}, nil
	})
	b.AddFunctionNode("slow", func(ctx context.Context, state State) (State, error) {
		time.Sleep(20 * time.Millisecond)
		return State{"messages": []any{"slow"}}, nil
	})
	b.AddEdge("start", "fast")
	b.AddEdge("start", "slow")
	b.SetEntryPoint("start")

	g, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	result, err := g.Start(context.Background(), "thread-parallel", State{})
	if err != nil {
		t.Fatal(err)
	}
	msgs, _ := result.State["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected both branches' messages merged, got %+v", msgs)
	}
	if msgs[0] != "fast" || msgs[1] != "slow" {
		t.Errorf("expected completion-order merge (fast before slow), got %+v", msgs)
	}
}

func TestGraph_InterruptBeforeSuspendsAndResumes(t *testing.T) {
	var executed bool
	b := NewBuilder()
	b.AddFunctionNode("prepare", func(ctx context.Context, state State) (State, error) {
		return State{"status": "prepared"}, nil
	})
	b.AddFunctionNode("execute", func(ctx context.Context, state State) (State, error) {
		executed = true
		return State{"status": "success"}, nil
	})
	b.AddSequence("prepare", "execute")
	b.SetEntryPoint("prepare")

	g, err := b.Compile(CompileOptions{InterruptBefore: []NodeID{"execute"}}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	result, err := g.Start(context.Background(), "thread-hitl", State{"staged_files": []any{"a.py"}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusSuspended {
		t.Fatalf("expected suspended, got %s", result.Status)
	}
	if executed {
		t.Fatal("execute must not have run before resume")
	}
	if len(result.PendingNodes) != 1 || result.PendingNodes[0] != "execute" {
		t.Fatalf("expected pending node execute, got %+v", result.PendingNodes)
	}
	if result.State["status"] != "prepared" {
		t.Fatalf("expected prepared state at suspension, got %+v", result.State)
	}

	resumed, err := g.Resume(context.Background(), "thread-hitl", result.PendingNodes, result.State, result.CheckpointID)
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Status != StatusCompleted {
		t.Fatalf("expected completed after resume, got %s", resumed.Status)
	}
	if !executed {
		t.Fatal("expected execute to run after resume")
	}
	if resumed.State["status"] != "success" {
		t.Fatalf("expected success state, got %+v", resumed.State)
	}
}

func TestGraph_CancelStopsSchedulingFurtherNodes(t *testing.T) {
	var bRan bool
	b := NewBuilder()
	b.AddFunctionNode("a", func(ctx context.Context, state State) (State, error) {
		time.Sleep(30 * time.Millisecond)
		return State{"a": true}, nil
	})
	b.AddFunctionNode("b", func(ctx context.Context, state State) (State, error) {
		bRan = true
		return State{"b": true}, nil
	})
	b.AddSequence("a", "b")
	b.SetEntryPoint("a")

	g, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	type outcome struct {
		result *RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := g.Start(context.Background(), "thread-cancel", State{})
		done <- outcome{result, err}
	}()

	time.Sleep(5 * time.Millisecond)
	g.Cancel("thread-cancel")

	out := <-done
	if out.err != nil {
		t.Fatal(out.err)
	}
	if out.result.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.result.Status)
	}
	if bRan {
		t.Error("expected node b to not run after cancellation, cancellation is not cooperative")
	}
	if out.result.State["status"] != "cancelled" {
		t.Errorf("expected cancelled status in state, got %+v", out.result.State)
	}
}

func TestGraph_MaxStepsGuardsAgainstNonTerminatingCycle(t *testing.T) {
	b := NewBuilder()
	b.AddFunctionNode("loop", func(ctx context.Context, state State) (State, error) {
		return State{}, nil
	})
	b.AddConditionalEdges("loop", func(s State) string { return "again" }, map[string]NodeID{"again": "loop"})
	b.SetEntryPoint("loop")

	g, err := b.Compile(CompileOptions{MaxSteps: 5}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	_, err = g.Start(context.Background(), "thread-loop", State{})
	if err == nil {
		t.Fatal("expected max-steps error for a never-terminating cycle")
	}
}

func TestGraph_CompileRejectsUnknownEdgeTarget(t *testing.T) {
	b := NewBuilder()
	b.AddFunctionNode("a", func(ctx context.Context, state State) (State, error) { return State{}, nil })
	b.AddEdge("a", "missing")
	b.SetEntryPoint("a")

	_, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err == nil {
		t.Fatal("expected compile error for an edge to an undeclared node")
	}
}

func TestGraph_Visualize(t *testing.T) {
	b := NewBuilder()
	b.AddFunctionNode("a", func(ctx context.Context, state State) (State, error) { return State{}, nil })
	b.AddSkillNode(SkillNodeConfig{Name: "b", Skill: "greeter", Command: "hello"})
	b.AddEdge("a", "b")
	b.SetEntryPoint("a")

	g, err := b.Compile(CompileOptions{}, Deps{Runner: newTestRunner(t), Hooks: newTestHooks(t)})
	if err != nil {
		t.Fatal(err)
	}

	out := g.Visualize()
	if out == "" {
		t.Fatal("expected non-empty visualization")
	}
}
