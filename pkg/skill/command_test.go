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

package skill

import (
	"context"
	"testing"
)

func TestNewCommand_GeneratesSchemaAndRuns(t *testing.T) {
	cmd, err := NewCommand("docs", CommandSpec{Name: "search", Description: "search docs"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return map[string]any{"echo": args.Query, "limit": args.Limit}, nil
		})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}

	props, ok := cmd.Spec.InputSchema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map in generated schema, got %#v", cmd.Spec.InputSchema)
	}
	if _, ok := props["query"]; !ok {
		t.Error("expected 'query' field in generated schema properties")
	}

	result, err := cmd.Handler.Fn(context.Background(), map[string]any{"query": "hello", "limit": 5})
	if err != nil {
		t.Fatalf("Handler.Fn: %v", err)
	}
	if result["echo"] != "hello" {
		t.Errorf("result[echo] = %v, want hello", result["echo"])
	}
}

func TestNewCommand_RequiresNameAndDescription(t *testing.T) {
	_, err := NewCommand("docs", CommandSpec{Description: "no name"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	if err == nil {
		t.Error("expected error for missing command name")
	}

	_, err = NewCommand("docs", CommandSpec{Name: "search"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	if err == nil {
		t.Error("expected error for missing command description")
	}
}

func TestNewIsolatedCommand_HasNoInProcessHandler(t *testing.T) {
	cmd, err := NewIsolatedCommand("sandbox", CommandSpec{
		Name:        "run_script",
		Description: "run an arbitrary script in a worker",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{"script": map[string]any{"type": "string"}}},
	})
	if err != nil {
		t.Fatalf("NewIsolatedCommand: %v", err)
	}
	if !cmd.Handler.Isolated {
		t.Error("expected Isolated handler")
	}
	if cmd.Handler.Fn != nil {
		t.Error("expected no in-process handler for an isolated command")
	}
}
