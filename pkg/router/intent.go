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

package router

import (
	"regexp"
	"strings"
)

// toolIDPattern matches a single skill.command-shaped token.
var toolIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,160}$`)

var tokenPattern = regexp.MustCompile(`[a-z0-9*]+`)

const (
	minExactLen = 3
	maxExactLen = 80
)

var fileDiscoveryTerms = map[string]bool{
	"find": true, "list": true, "files": true, "file": true,
	"directory": true, "folder": true, "path": true, "glob": true, "extension": true,
}

var toolCapabilityTerms = map[string]bool{
	"tools": true, "commands": true, "capability": true, "capabilities": true,
	"skill": true, "skills": true, "available": true, "omni": true, "registry": true,
}

func normalizeQueryParts(query string) []string {
	return tokenPattern.FindAllString(strings.ToLower(strings.TrimSpace(query)), -1)
}

// isFileDiscoveryQuery reports whether query is about locating files or
// directories, ported from the rule-based classifier's file-discovery
// term set and its "list available tools" capability-term override.
func isFileDiscoveryQuery(query string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	parts := normalizeQueryParts(query)

	hasCapability, hasDiscovery := false, false
	for _, p := range parts {
		if toolCapabilityTerms[p] {
			hasCapability = true
		}
		if fileDiscoveryTerms[p] {
			hasDiscovery = true
		}
	}
	if hasCapability && hasDiscovery {
		return false
	}
	if hasDiscovery {
		return true
	}
	for _, p := range parts {
		if strings.HasPrefix(p, "*.") {
			return true
		}
	}
	return strings.Contains(lower, ".py") || strings.Contains(lower, ".rs")
}

// classifyIntent classifies a (translated) query into a retrieval Intent
// plus optional CategoryFilter, using the same rule-based thresholds as
// the original tool-search classifier: exact iff the query is a single
// 3-80 char token matching [A-Za-z0-9_.-], contains at least one '.', and
// at least one letter; everything else is hybrid, with file_discovery
// attached when the query looks like it is locating files.
func classifyIntent(query string) (Intent, CategoryFilter) {
	q := strings.TrimSpace(query)
	if q == "" {
		return IntentHybrid, CategoryNone
	}

	hybridWithFilter := func() (Intent, CategoryFilter) {
		if isFileDiscoveryQuery(q) {
			return IntentHybrid, CategoryFileDiscovery
		}
		return IntentHybrid, CategoryNone
	}

	if len(q) < minExactLen || len(q) > maxExactLen {
		return hybridWithFilter()
	}
	if strings.Contains(q, " ") {
		return hybridWithFilter()
	}
	if !toolIDPattern.MatchString(q) || !strings.Contains(q, ".") {
		return hybridWithFilter()
	}
	hasLetter := false
	for _, c := range q {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return hybridWithFilter()
	}
	return IntentExact, CategoryNone
}
