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
	"encoding/json"
	"fmt"

	"github.com/omnicore/omnicore/pkg/runner"
)

// act executes tool via pkg/runner (4.H), appends a length-capped summary
// of the result to context, and updates the artifact set from recognized
// output patterns. It returns the raw result for lesson harvesting.
func act(ctx context.Context, r *runner.Runner, s *state, tool ToolCall, resultCharLimit int) (map[string]any, error) {
	result, err := r.Run(ctx, tool.Skill, tool.Command, tool.Args)
	if err != nil {
		s.addMessage("tool", fmt.Sprintf("tool %s.%s failed: %v", tool.Skill, tool.Command, err))
		return nil, err
	}

	text := formatResult(result, resultCharLimit)
	s.addMessage("tool", text)

	if path, ok := recognizeArtifact(text); ok {
		s.recordArtifact(path)
	}
	for _, v := range result {
		if str, ok := v.(string); ok {
			if path, ok := recognizeArtifact(str); ok {
				s.recordArtifact(path)
			}
		}
	}

	return result, nil
}

// formatResult marshals result to JSON and ellipsis-truncates it to limit
// characters, per spec.md §4.J's "length-capped with ellipsis".
func formatResult(result map[string]any, limit int) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("<unmarshalable result: %v>", err)
	}
	text := string(data)
	if limit > 0 && len(text) > limit {
		text = text[:limit] + "…"
	}
	return text
}

// argsKey builds a stable string for failure/success tracking, keyed by
// tool name; args content distinguishes one attempt from another in the
// recorded Lesson.
func argsKey(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

func toolKey(tool ToolCall) string {
	return tool.Skill + "." + tool.Command
}
