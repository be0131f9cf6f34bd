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

import "context"

// decide runs the Decide step: a single LLM call over the current context,
// followed by the tolerant multi-format parser and, failing that, the
// free-text intent fallback. The returned error is ErrNoToolCall only for
// a structural parse failure, which the caller must count as a step
// without retrying, per spec.md §4.J.
func decide(ctx context.Context, llm LLMClient, s *state) (Decision, error) {
	reply, err := llm.Complete(ctx, s.snapshot())
	if err != nil {
		return Decision{}, err
	}

	decision, err := parseDecision(reply)
	if err == nil {
		return decision, nil
	}

	last, haveArtifact := s.lastArtifact()
	if fallback, ok := freeTextIntentFallback(reply, last, haveArtifact); ok {
		return fallback, nil
	}

	return Decision{}, ErrNoToolCall
}
