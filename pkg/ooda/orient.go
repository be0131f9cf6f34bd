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
	"regexp"
	"strings"
)

var (
	knowledgeVerbs = []string{"how", "what", "why", "where", "which", "explain"}
	docKeywords    = []string{"doc", "docs", "documentation", "readme", "guide", "manual", "reference"}
	fileExtPattern = regexp.MustCompile(`\.[a-zA-Z][a-zA-Z0-9]{1,5}\b`)

	// imperativeVerbs are simple command verbs that should skip RAG
	// augmentation even if they happen to mention a file extension, per
	// spec.md §4.J's "commit my changes" example.
	imperativeVerbs = []string{"commit", "run", "delete", "remove", "start", "stop", "build", "deploy", "push", "pull", "install", "create", "execute"}
)

// knowledgeIntent reports whether query looks like a knowledge-seeking
// question rather than a simple imperative command, per spec.md §4.J's
// Orient heuristic.
func knowledgeIntent(query string) bool {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	firstWord := lower
	if i := strings.IndexAny(lower, " \t\n"); i >= 0 {
		firstWord = lower[:i]
	}
	firstWord = strings.TrimRight(firstWord, "?,.!")

	for _, verb := range imperativeVerbs {
		if firstWord == verb {
			return false
		}
	}
	for _, verb := range knowledgeVerbs {
		if firstWord == verb {
			return true
		}
	}
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return fileExtPattern.MatchString(query)
}

// orient runs the Orient step: when query shows knowledge intent and a
// Librarian is injected, fetch up to n snippets and append them as a
// system message for the next Decide call.
func orient(ctx context.Context, s *state, query string, librarian Librarian, n int) error {
	if librarian == nil || !knowledgeIntent(query) {
		return nil
	}
	snippets, err := librarian.Snippets(ctx, query, n)
	if err != nil {
		return err
	}
	if len(snippets) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for i, snip := range snippets {
		if i >= n {
			break
		}
		b.WriteString("- ")
		b.WriteString(snip)
		b.WriteString("\n")
	}
	s.addMessage("system", b.String())
	return nil
}
