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

// applyClosureGuard overrides a finish decision when an artifact was
// discovered but its index.md has never entered context, forcing one more
// filesystem.read_files round. It fires at most once per artifact, per
// spec.md §4.J.
func applyClosureGuard(decision Decision, s *state) Decision {
	if decision.Action != ActionFinish {
		return decision
	}
	artifact, ok := s.lastArtifact()
	if !ok || s.hasReadIndex(artifact) || s.closureAlreadyChecked(artifact) {
		return decision
	}
	s.markClosureChecked(artifact)
	return Decision{
		Action: ActionToolCall,
		Tool: ToolCall{
			Skill:   "filesystem",
			Command: "read_files",
			Args:    map[string]any{"paths": []any{artifact + "/index.md"}},
		},
	}
}
