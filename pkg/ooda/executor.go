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
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/runner"
)

// NewThreadID mints a fresh thread identifier for a new Run, per the
// original source's checkpoint identifier scheme. Callers resuming an
// existing thread pass its previously issued ID straight to Run instead.
func NewThreadID() string {
	return uuid.NewString()
}

// Executor drives one OODA loop per Run call. A single Executor is safe to
// reuse across unrelated tasks; it holds no per-task state itself.
type Executor struct {
	cfg       Config
	runner    *runner.Runner
	llm       LLMClient
	librarian Librarian
	hooks     *checkpoint.CheckpointHooks
	embed     EmbedFunc
	obs       *observability.Manager
}

// SetObservability attaches obs to e, wrapping Run in a SpanAgentRun span
// tagged with the thread ID. Safe to call with a nil obs.
func (e *Executor) SetObservability(obs *observability.Manager) {
	e.obs = obs
}

// EmbedFunc computes a checkpoint embedding for lesson harvesting;
// identical shape to pkg/graph.EmbedFunc.
type EmbedFunc func(ctx context.Context, content []byte) ([]float32, error)

// New builds an Executor. llm is required; librarian and hooks may be nil,
// in which case RAG augmentation and checkpointing are both skipped.
func New(cfg Config, r *runner.Runner, llm LLMClient, librarian Librarian, hooks *checkpoint.CheckpointHooks, embed EmbedFunc) (*Executor, error) {
	if r == nil {
		return nil, errors.New("ooda: a runner is required")
	}
	if llm == nil {
		return nil, errors.New("ooda: an LLMClient is required")
	}
	return &Executor{
		cfg:       cfg.withDefaults(),
		runner:    r,
		llm:       llm,
		librarian: librarian,
		hooks:     hooks,
		embed:     embed,
	}, nil
}

// Run drives threadID's task to completion: Observe, Orient, Decide, Act,
// closure guard and lesson harvesting every iteration, per spec.md §4.J.
func (e *Executor) Run(ctx context.Context, threadID, systemPrompt, query string) (*Result, error) {
	ctx, span := e.obs.Tracer().Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(attribute.String(observability.AttrEventID, threadID)))
	defer span.End()

	s := newState(systemPrompt, query)
	var lessons []Lesson
	var parentCheckpoint string

	if e.hooks != nil {
		content, embedding := e.checkpointContent(ctx, s)
		id, _ := e.hooks.OnGraphStart(ctx, threadID, content, embedding)
		parentCheckpoint = id
	}

	for step := 0; step < e.cfg.MaxSteps; step++ {
		prune(s, e.cfg.RetainedTurns, e.cfg.TokenBudget)

		if err := orient(ctx, s, query, e.librarian, e.cfg.SnippetCount); err != nil {
			return nil, err
		}

		decision, err := withBackoff(ctx, e.cfg.RetryAttempts, e.cfg.RetryBaseDelay, e.cfg.RetryMaxDelay, func() (Decision, error) {
			return decide(ctx, e.llm, s)
		})
		if err != nil {
			if errors.Is(err, ErrNoToolCall) {
				// Structural error: counts this step, no retry, no
				// progress — the loop simply moves to the next iteration
				// with an error noted in context for the LLM to see.
				s.addMessage("tool", "error: could not parse a tool call or finish decision from the previous reply")
				continue
			}
			if e.hooks != nil {
				content, embedding := e.checkpointContent(ctx, s)
				e.hooks.OnError(ctx, threadID, parentCheckpoint, content, err, embedding)
			}
			return nil, err
		}

		decision = applyClosureGuard(decision, s)

		if decision.Action == ActionFinish {
			if e.hooks != nil {
				content, embedding := e.checkpointContent(ctx, s)
				e.hooks.OnComplete(ctx, threadID, parentCheckpoint, content, embedding)
			}
			return &Result{
				FinalText: decision.FinishText,
				Steps:     step + 1,
				Lessons:   lessons,
				Artifacts: append([]string(nil), s.artifacts...),
			}, nil
		}

		key := toolKey(decision.Tool)
		argsJSON := argsKey(decision.Tool.Args)

		result, actErr := act(ctx, e.runner, s, decision.Tool, e.cfg.ResultCharLimit)
		if actErr != nil {
			s.recordFailure(key, argsJSON)
		} else {
			if lesson, ok := s.harvestSuccess(key, argsJSON); ok {
				lessons = append(lessons, lesson)
				if e.hooks != nil {
					content, embedding := e.checkpointContent(ctx, s)
					e.hooks.OnLesson(ctx, threadID, parentCheckpoint, content, lesson.Tool, lesson.FailedAttempt, lesson.SuccessfulAttempt, embedding)
				}
			}
			e.markIndexReadIfApplicable(s, decision.Tool, result)
		}

		if e.hooks != nil {
			content, embedding := e.checkpointContent(ctx, s)
			id, _ := e.hooks.OnIntervalTick(ctx, threadID, parentCheckpoint, content, step, embedding)
			if id != "" {
				parentCheckpoint = id
			}
		}
	}

	return nil, errors.New("ooda: max_steps exceeded without reaching finish")
}

// markIndexReadIfApplicable records that an artifact's index.md has now
// entered context, so the closure guard doesn't re-trigger for it.
func (e *Executor) markIndexReadIfApplicable(s *state, tool ToolCall, result map[string]any) {
	if result == nil || tool.Skill != "filesystem" || tool.Command != "read_files" {
		return
	}
	paths, _ := tool.Args["paths"].([]any)
	for _, p := range paths {
		path, ok := p.(string)
		if !ok || !strings.HasSuffix(path, "/index.md") {
			continue
		}
		artifact := strings.TrimSuffix(path, "/index.md")
		s.markIndexRead(artifact)
	}
}

func (e *Executor) checkpointContent(ctx context.Context, s *state) ([]byte, []float32) {
	content, err := checkpoint.CanonicalJSON(s.snapshot())
	if err != nil {
		return nil, nil
	}
	if e.embed == nil {
		return content, nil
	}
	embedding, err := e.embed(ctx, content)
	if err != nil {
		return content, nil
	}
	return content, embedding
}
