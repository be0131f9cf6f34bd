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

// Package ooda drives one user task to completion: a single-threaded
// Observe/Orient/Decide/Act loop, grounded on the teacher's
// pkg/reasoning.ReasoningState ownership model (agent-owned fields here are
// unexported and reached through accessors; there is no strategy-owned
// half because this package has exactly one strategy) and on
// ChainOfThoughtStrategy's ShouldStop/AfterIteration iteration shape,
// generalized to spec.md §4.J's multi-format tool-call parser, closure
// guard, and lesson harvesting.
package ooda

import (
	"context"
	"time"
)

// Message is one entry in the running conversation context. Role follows
// the familiar "system"/"user"/"assistant"/"tool" vocabulary; this package
// never depends on pkg/llms or any concrete wire format, per spec.md's
// Non-goal that the LLM provider's wire format is out of scope.
type Message struct {
	Role    string
	Content string
}

// LLMClient is the Decide step's sole external collaborator. It is
// LLM-backed and lives outside this module's scope (the wire format is a
// spec Non-goal); Run works with any injected implementation, following the
// precedent set by pkg/router.Translator.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Librarian supplies the Orient step's optional RAG augmentation: up to n
// high-similarity snippets for query. Like LLMClient, it is an injected
// collaborator with no required concrete backend — Run works identically
// with librarian == nil, simply skipping augmentation.
type Librarian interface {
	Snippets(ctx context.Context, query string, n int) ([]string, error)
}

// Action is the kind of decision Decide parsed out of an LLM reply.
type Action string

const (
	ActionToolCall Action = "tool_call"
	ActionFinish   Action = "finish"
)

// ToolCall names a skill command and its arguments, in the runner's
// "skill.command" dotted form.
type ToolCall struct {
	Skill   string
	Command string
	Args    map[string]any
}

// Decision is one parsed Decide-step outcome.
type Decision struct {
	Action     Action
	Tool       ToolCall
	FinishText string
}

// Lesson records that a tool which failed once later succeeded within the
// same session, per spec.md §4.J's lesson harvesting step.
type Lesson struct {
	Tool              string
	FailedAttempt     string
	SuccessfulAttempt string
}

// Config tunes the loop's pruning, retry, and termination behavior.
type Config struct {
	// MaxSteps bounds iterations; default 10 (spec.md §4.J).
	MaxSteps int `yaml:"max_steps,omitempty"`

	// RetainedTurns is how many of the most recent turns the Observe
	// pruner keeps verbatim; default 10.
	RetainedTurns int `yaml:"retained_turns,omitempty"`

	// TokenBudget is the estimated-token ceiling that triggers
	// compression of turns older than RetainedTurns; default 4000.
	TokenBudget int `yaml:"token_budget,omitempty"`

	// SnippetCount is how many Librarian snippets Orient requests;
	// default 3.
	SnippetCount int `yaml:"snippet_count,omitempty"`

	// ResultCharLimit caps how much of a tool result's content enters
	// context before ellipsis-truncation; default 2000.
	ResultCharLimit int `yaml:"result_char_limit,omitempty"`

	// RetryAttempts is how many extra attempts a transient Decide error
	// gets; default 2.
	RetryAttempts int `yaml:"retry_attempts,omitempty"`

	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff
	// between retry attempts; defaults 500ms and 10s.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.RetainedTurns <= 0 {
		c.RetainedTurns = 10
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 4000
	}
	if c.SnippetCount <= 0 {
		c.SnippetCount = 3
	}
	if c.ResultCharLimit <= 0 {
		c.ResultCharLimit = 2000
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 2
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	return c
}

// Result is the loop's final outcome.
type Result struct {
	FinalText string
	Steps     int
	Lessons   []Lesson
	Artifacts []string
}
