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
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoToolCall is returned when none of the tolerant parser's formats
// matched and no free-text intent fallback applied either — a structural
// error per spec.md §4.J, which counts a step but is not retried.
var ErrNoToolCall = errors.New("ooda: reply contains no recognizable tool call or finish")

var (
	xmlToolCall = regexp.MustCompile(`(?s)<tool_call\s+name="([^"]+)"\s*>(.*?)</tool_call>`)
	bracketCall = regexp.MustCompile(`(?s)\[tool:\s*([a-zA-Z0-9_.\-]+)\]\s*(\{.*)`)
)

// jsonDecision is the first tolerant-parser format: a bare JSON object
// naming an action.
type jsonDecision struct {
	Action string         `json:"action"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Text   string         `json:"text"`
}

// parseDecision applies the tolerant multi-format parser of spec.md §4.J,
// formats 1 through 3 (the free-text intent fallback, format 4, needs the
// session's artifact state and is applied by the caller when this returns
// ErrNoToolCall).
func parseDecision(reply string) (Decision, error) {
	if obj, ok := findFirstJSONObject(reply); ok {
		var jd jsonDecision
		if err := json.Unmarshal([]byte(obj), &jd); err == nil && jd.Action != "" {
			switch jd.Action {
			case "finish":
				return Decision{Action: ActionFinish, FinishText: jd.Text}, nil
			case "tool_call":
				skill, command, ok := splitTool(jd.Tool)
				if ok {
					return Decision{Action: ActionToolCall, Tool: ToolCall{Skill: skill, Command: command, Args: jd.Args}}, nil
				}
			}
		}
	}

	if m := xmlToolCall.FindStringSubmatch(reply); m != nil {
		skill, command, ok := splitTool(strings.TrimSpace(m[1]))
		if ok {
			args, _ := parseArgs(m[2])
			return Decision{Action: ActionToolCall, Tool: ToolCall{Skill: skill, Command: command, Args: args}}, nil
		}
	}

	if m := bracketCall.FindStringSubmatch(reply); m != nil {
		skill, command, ok := splitTool(strings.TrimSpace(m[1]))
		if ok {
			if obj, ok := findFirstJSONObject(m[2]); ok {
				args, _ := parseArgs(obj)
				return Decision{Action: ActionToolCall, Tool: ToolCall{Skill: skill, Command: command, Args: args}}, nil
			}
		}
	}

	return Decision{}, ErrNoToolCall
}

func parseArgs(raw string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// splitTool divides "skill.command" into its two parts.
func splitTool(tool string) (skill, command string, ok bool) {
	idx := strings.Index(tool, ".")
	if idx <= 0 || idx == len(tool)-1 {
		return "", "", false
	}
	return tool[:idx], tool[idx+1:], true
}

// findFirstJSONObject scans s for the first balanced {...} substring,
// respecting string literals and escapes, and returns it.
func findFirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// freeTextIntentFallback synthesizes a filesystem.read_files call when the
// reply reads as asking to inspect something and an artifact is known,
// format 4 of spec.md §4.J's parser.
func freeTextIntentFallback(reply string, lastArtifact string, haveArtifact bool) (Decision, bool) {
	if !haveArtifact {
		return Decision{}, false
	}
	lower := strings.ToLower(reply)
	intents := []string{"read", "show", "analyze", "inspect", "look at", "open", "review"}
	matched := false
	for _, kw := range intents {
		if strings.Contains(lower, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return Decision{}, false
	}
	return Decision{
		Action: ActionToolCall,
		Tool: ToolCall{
			Skill:   "filesystem",
			Command: "read_files",
			Args:    map[string]any{"paths": []any{lastArtifact + "/index.md"}},
		},
	}, true
}
