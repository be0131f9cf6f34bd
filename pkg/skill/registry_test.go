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

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=max results,default=10"`
}

func newSearchCommand(t *testing.T) *Command {
	t.Helper()
	cmd, err := NewCommand("docs", CommandSpec{Name: "search", Description: "search docs"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return map[string]any{"query": args.Query}, nil
		})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	return cmd
}

func TestRegistry_LoadThenGetCommand(t *testing.T) {
	r := NewRegistry()
	cmd := newSearchCommand(t)
	manifest := Manifest{Name: "docs", Description: "doc tools", Version: "1.0.0"}

	if err := r.Load(manifest, "/bundles/docs", []*Command{cmd}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	record, handler, ok := r.GetCommand("docs", "search")
	if !ok {
		t.Fatal("expected docs.search to resolve")
	}
	if record.SkillName != "docs" || record.CommandName != "search" {
		t.Errorf("unexpected record: %+v", record)
	}
	if handler.Fn == nil {
		t.Error("expected an in-process handler function")
	}

	state, ok := r.State("docs")
	if !ok || state != Loaded {
		t.Errorf("expected state Loaded, got %v (ok=%v)", state, ok)
	}
}

func TestRegistry_LoadTwiceFails(t *testing.T) {
	r := NewRegistry()
	manifest := Manifest{Name: "docs", Description: "doc tools", Version: "1.0.0"}
	if err := r.Load(manifest, "/bundles/docs", nil); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if err := r.Load(manifest, "/bundles/docs", nil); err == nil {
		t.Fatal("expected second Load of the same skill to fail")
	}
}

func TestRegistry_DirtyThenReloadNotifiesUpdate(t *testing.T) {
	r := NewRegistry()
	manifest := Manifest{Name: "docs", Description: "doc tools", Version: "1.0.0"}
	cmd := newSearchCommand(t)
	if err := r.Load(manifest, "/bundles/docs", []*Command{cmd}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got Update
	r.OnUpdate(func(u Update) { got = u })

	if err := r.MarkDirty("docs"); err != nil {
		t.Fatalf("MarkDirty: %v", err)
	}

	newCmd, err := NewCommand("docs", CommandSpec{Name: "search", Description: "search docs v2"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	extraCmd, err := NewCommand("docs", CommandSpec{Name: "summarize", Description: "summarize docs"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}

	if err := r.Reload(manifest, "/bundles/docs", []*Command{newCmd, extraCmd}); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if len(got.Modified) != 1 || got.Modified[0] != "docs.search" {
		t.Errorf("expected docs.search to be reported modified, got %+v", got)
	}
	if len(got.Added) != 1 || got.Added[0] != "docs.summarize" {
		t.Errorf("expected docs.summarize to be reported added, got %+v", got)
	}

	state, _ := r.State("docs")
	if state != Reloaded {
		t.Errorf("expected state Reloaded, got %v", state)
	}
}

func TestRegistry_ReloadWithoutDirtyFails(t *testing.T) {
	r := NewRegistry()
	manifest := Manifest{Name: "docs", Description: "doc tools", Version: "1.0.0"}
	if err := r.Load(manifest, "/bundles/docs", nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Reload(manifest, "/bundles/docs", nil); err == nil {
		t.Fatal("expected Reload to fail from Loaded state (must go through Dirty first)")
	}
}

func TestRegistry_RemoveNotifiesAndDrops(t *testing.T) {
	r := NewRegistry()
	manifest := Manifest{Name: "docs", Description: "doc tools", Version: "1.0.0"}
	cmd := newSearchCommand(t)
	if err := r.Load(manifest, "/bundles/docs", []*Command{cmd}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got Update
	r.OnUpdate(func(u Update) { got = u })

	if err := r.Remove("docs"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(got.Removed) != 1 || got.Removed[0] != "docs.search" {
		t.Errorf("expected docs.search to be reported removed, got %+v", got)
	}

	if _, _, ok := r.GetCommand("docs", "search"); ok {
		t.Error("expected command to be gone after Remove")
	}
}

func TestRegistry_ListCommandsSortedDeterministic(t *testing.T) {
	r := NewRegistry()
	a, _ := NewCommand("a", CommandSpec{Name: "zzz", Description: "z"}, func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	b, _ := NewCommand("a", CommandSpec{Name: "aaa", Description: "a"}, func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil })
	if err := r.Load(Manifest{Name: "a", Description: "a", Version: "1.0.0"}, "/a", []*Command{a, b}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	records := r.ListCommands()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].CommandName != "aaa" || records[1].CommandName != "zzz" {
		t.Errorf("expected sorted order aaa,zzz, got %s,%s", records[0].CommandName, records[1].CommandName)
	}
}
