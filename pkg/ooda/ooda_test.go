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

package ooda

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/runner"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/vector"
)

// scriptedLLM returns one reply per call, in order, looping the last reply
// if Run asks for more iterations than scripted.
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []Message) (string, error) {
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i], nil
}

func newTestRunner(t *testing.T) *runner.Runner {
	t.Helper()
	registry := skill.NewRegistry()

	harvest, err := skill.NewCommand("harvest", skill.CommandSpec{
		Name:        "run",
		Description: "Runs a harvesting job and returns its output directory.",
	}, func(ctx context.Context, args struct{}) (map[string]any, error) {
		return map[string]any{"output_dir": "/project/.data/harvested/run-1"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	readFiles, err := skill.NewCommand("filesystem", skill.CommandSpec{
		Name:        "read_files",
		Description: "Reads files at the given paths.",
	}, func(ctx context.Context, args struct {
		Paths []string `json:"paths"`
	}) (map[string]any, error) {
		out := make(map[string]any, len(args.Paths))
		for _, p := range args.Paths {
			out[p] = "contents of " + p
		}
		return out, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := registry.Load(skill.Manifest{Name: "harvest", Description: "harvests things"}, "/bundles/harvest", []*skill.Command{harvest}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Load(skill.Manifest{Name: "filesystem", Description: "file access"}, "/bundles/filesystem", []*skill.Command{readFiles}); err != nil {
		t.Fatal(err)
	}

	r, err := runner.New(runner.Config{Registry: registry})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

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

func TestParseDecision_JSONFormat(t *testing.T) {
	reply := `I'll do that now. {"action":"tool_call","tool":"harvest.run","args":{}} done`
	d, err := parseDecision(reply)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionToolCall || d.Tool.Skill != "harvest" || d.Tool.Command != "run" {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_FinishFormat(t *testing.T) {
	reply := `{"action":"finish","text":"all done"}`
	d, err := parseDecision(reply)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionFinish || d.FinishText != "all done" {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_XMLFormat(t *testing.T) {
	reply := `<tool_call name="harvest.run">{"limit": 5}</tool_call>`
	d, err := parseDecision(reply)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionToolCall || d.Tool.Skill != "harvest" || d.Tool.Command != "run" {
		t.Errorf("unexpected decision: %+v", d)
	}
	if d.Tool.Args["limit"].(float64) != 5 {
		t.Errorf("expected arg limit=5, got %+v", d.Tool.Args)
	}
}

func TestParseDecision_BracketFormat(t *testing.T) {
	reply := `[tool: harvest.run]{"limit": 3}`
	d, err := parseDecision(reply)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionToolCall || d.Tool.Skill != "harvest" || d.Tool.Command != "run" {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_NoMatchReturnsErrNoToolCall(t *testing.T) {
	_, err := parseDecision("just some plain prose with no structure")
	if !errors.Is(err, ErrNoToolCall) {
		t.Fatalf("expected ErrNoToolCall, got %v", err)
	}
}

func TestFreeTextIntentFallback(t *testing.T) {
	d, ok := freeTextIntentFallback("Sure, let me read that file for you.", "/project/.data/harvested/run-1", true)
	if !ok {
		t.Fatal("expected fallback to match")
	}
	if d.Tool.Skill != "filesystem" || d.Tool.Command != "read_files" {
		t.Errorf("unexpected fallback decision: %+v", d)
	}
	paths := d.Tool.Args["paths"].([]any)
	if paths[0] != "/project/.data/harvested/run-1/index.md" {
		t.Errorf("unexpected path: %+v", paths)
	}
}

func TestFreeTextIntentFallback_NoArtifactOrIntent(t *testing.T) {
	if _, ok := freeTextIntentFallback("read it please", "", false); ok {
		t.Error("expected no fallback without a known artifact")
	}
	if _, ok := freeTextIntentFallback("sounds good, thanks!", "/a", true); ok {
		t.Error("expected no fallback without read/show/analyze intent")
	}
}

func TestKnowledgeIntent(t *testing.T) {
	cases := map[string]bool{
		"how does the router work?":       true,
		"what is a checkpoint":            true,
		"explain the closure guard":       true,
		"commit my changes":               false,
		"run the harvest job":             false,
		"can you check config.yaml?":      true,
		"push the release branch please":  false,
	}
	for q, want := range cases {
		if got := knowledgeIntent(q); got != want {
			t.Errorf("knowledgeIntent(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestPrune_KeepsSystemAndRecentTurns(t *testing.T) {
	s := newState("you are an assistant", "first request")
	for i := 0; i < 20; i++ {
		s.addMessage("assistant", fmt.Sprintf("reply %d", i))
		s.addMessage("user", fmt.Sprintf("followup %d long padding text to inflate the estimated token count substantially %d", i, i))
	}
	prune(s, 3, 50)

	var systemCount, userCount int
	for _, m := range s.messages {
		if m.Role == "system" {
			systemCount++
		}
		if m.Role == "user" {
			userCount++
		}
	}
	if systemCount < 1 {
		t.Error("expected at least the original system message to survive")
	}
	if userCount > 3 {
		t.Errorf("expected at most retainedTurns user turns kept, got %d", userCount)
	}
}

type fakeLibrarian struct {
	snippets []string
}

func (f *fakeLibrarian) Snippets(ctx context.Context, query string, n int) ([]string, error) {
	if n > len(f.snippets) {
		n = len(f.snippets)
	}
	return f.snippets[:n], nil
}

func TestOrient_InjectsSnippetsForKnowledgeQueries(t *testing.T) {
	s := newState("", "how does the router rank results?")
	lib := &fakeLibrarian{snippets: []string{"snippet one", "snippet two"}}
	if err := orient(context.Background(), s, "how does the router rank results?", lib, 2); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range s.messages {
		if m.Role == "system" && m.Content != "" && m.Content != "how does the router rank results?" {
			found = true
		}
	}
	if !found {
		t.Error("expected a system message with injected snippets")
	}
}

func TestOrient_SkipsForImperativeQueries(t *testing.T) {
	s := newState("", "commit my changes")
	lib := &fakeLibrarian{snippets: []string{"should not appear"}}
	if err := orient(context.Background(), s, "commit my changes", lib, 2); err != nil {
		t.Fatal(err)
	}
	for _, m := range s.messages {
		if m.Content == "should not appear" {
			t.Error("expected no RAG injection for an imperative command")
		}
	}
}

// TestExecutor_Run_ClosureGuardForcesIndexRead models the full loop: the
// LLM calls harvest.run, discovers an artifact, then tries to finish
// before ever reading that artifact's index.md — the closure guard must
// force one more read_files call before finish is honored.
func TestExecutor_Run_ClosureGuardForcesIndexRead(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"action":"tool_call","tool":"harvest.run","args":{}}`,
		`{"action":"finish","text":"harvest complete"}`,
		`{"action":"finish","text":"harvest complete"}`,
	}}

	exec, err := New(Config{}, newTestRunner(t), llm, nil, newTestHooks(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := exec.Run(context.Background(), "thread-closure", "you are a harvesting assistant", "harvest the data please")
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalText != "harvest complete" {
		t.Errorf("unexpected final text: %q", result.FinalText)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0] != "/project/.data/harvested/run-1" {
		t.Errorf("unexpected artifacts: %+v", result.Artifacts)
	}
	if llm.calls < 3 {
		t.Errorf("expected the closure guard to force an extra round, got %d calls", llm.calls)
	}
}

// TestExecutor_Run_HarvestsLessonOnRetrySuccess runs a tool that fails once
// then succeeds, asserting the lesson is recorded.
func TestExecutor_Run_HarvestsLessonOnRetrySuccess(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"action":"tool_call","tool":"filesystem.read_files","args":{"paths":["/missing"]}}`,
		`{"action":"tool_call","tool":"filesystem.read_files","args":{"paths":["/project/file.txt"]}}`,
		`{"action":"finish","text":"done"}`,
	}}

	registry := skill.NewRegistry()
	var fail = true
	readFiles, err := skill.NewCommand("filesystem", skill.CommandSpec{
		Name:        "read_files",
		Description: "Reads files, failing the first call.",
	}, func(ctx context.Context, args struct {
		Paths []string `json:"paths"`
	}) (map[string]any, error) {
		if fail {
			fail = false
			return nil, errors.New("not found")
		}
		return map[string]any{"content": "ok"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Load(skill.Manifest{Name: "filesystem", Description: "file access"}, "/bundles/filesystem", []*skill.Command{readFiles}); err != nil {
		t.Fatal(err)
	}
	r, err := runner.New(runner.Config{Registry: registry})
	if err != nil {
		t.Fatal(err)
	}

	exec, err := New(Config{}, r, llm, nil, newTestHooks(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := exec.Run(context.Background(), "thread-lesson", "", "read a file please")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Lessons) != 1 {
		t.Fatalf("expected one harvested lesson, got %+v", result.Lessons)
	}
	if result.Lessons[0].Tool != "filesystem.read_files" {
		t.Errorf("unexpected lesson tool: %+v", result.Lessons[0])
	}
}

func TestExecutor_Run_StructuralErrorDoesNotRetryButContinues(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"not a tool call at all, just chatting",
		`{"action":"finish","text":"done"}`,
	}}
	exec, err := New(Config{}, newTestRunner(t), llm, nil, newTestHooks(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := exec.Run(context.Background(), "thread-structural", "", "say hello")
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalText != "done" {
		t.Errorf("unexpected final text: %q", result.FinalText)
	}
	if llm.calls != 2 {
		t.Errorf("expected exactly 2 LLM calls (no retry on structural error), got %d", llm.calls)
	}
}

func TestExecutor_Run_MaxStepsExceeded(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"action":"tool_call","tool":"harvest.run","args":{}}`}}
	exec, err := New(Config{MaxSteps: 2}, newTestRunner(t), llm, nil, newTestHooks(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = exec.Run(context.Background(), "thread-maxsteps", "", "keep harvesting forever")
	if err == nil {
		t.Fatal("expected a max_steps error")
	}
}

func TestWithBackoff_RetriesOnlyTransientErrors(t *testing.T) {
	attempts := 0
	_, err := withBackoff(context.Background(), 2, 0, 0, func() (Decision, error) {
		attempts++
		return Decision{}, ErrNoToolCall
	})
	if !errors.Is(err, ErrNoToolCall) {
		t.Fatalf("expected ErrNoToolCall, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected no retries for a non-transient error, got %d attempts", attempts)
	}

	attempts = 0
	_, err = withBackoff(context.Background(), 2, 0, 0, func() (Decision, error) {
		attempts++
		return Decision{}, Transient(errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 total attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestNewThreadID_UniqueAndNonEmpty(t *testing.T) {
	a := NewThreadID()
	b := NewThreadID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty thread IDs")
	}
	if a == b {
		t.Fatalf("expected distinct thread IDs, got %q twice", a)
	}
}
