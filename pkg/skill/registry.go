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
	"fmt"
	"sort"
	"sync"
)

// Update describes what changed in one reload cycle, delivered to every
// OnUpdate subscriber. Entries are "skill.command" identities.
type Update struct {
	Added    []string
	Modified []string
	Removed  []string
}

// UpdateFunc is an on_update subscriber.
type UpdateFunc func(Update)

// Registry is the Skill Registry: name -> bundle and skill.command ->
// handler resolution, plus the lifecycle state machine each bundle moves
// through. The teacher's pkg/registry.BaseRegistry is a plain insert-once
// map (Register fails on a duplicate name); a skill bundle must be
// *replaceable* in place on every reload, so Registry keeps its own
// map+mutex in the same spirit (name-keyed, RWMutex-guarded) rather than
// wrapping BaseRegistry directly.
type Registry struct {
	mu          sync.RWMutex
	bundles     map[string]*Bundle
	subscribers []UpdateFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bundles: make(map[string]*Bundle)}
}

// Load transitions a never-seen skill Undiscovered -> Loaded on first
// successful scan, storing its commands. It is an error to Load a skill
// name that already has a bundle; use Reload for subsequent scans.
func (r *Registry) Load(manifest Manifest, dir string, commands []*Command) error {
	if manifest.Name == "" {
		return fmt.Errorf("skill manifest name is required")
	}

	r.mu.Lock()
	if _, exists := r.bundles[manifest.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("skill %q already loaded, use Reload", manifest.Name)
	}

	b := &Bundle{Manifest: manifest, Dir: dir, Commands: commandMap(commands), State: Loaded}
	r.bundles[manifest.Name] = b
	added := b.commandIdentities()
	r.mu.Unlock()

	r.notify(Update{Added: added})
	return nil
}

// MarkDirty transitions a Loaded or Reloaded skill to Dirty on an FS event
// under its bundle directory.
func (r *Registry) MarkDirty(skillName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bundles[skillName]
	if !ok {
		return fmt.Errorf("skill %q not found", skillName)
	}
	next, err := Transition(b.State, Dirty)
	if err != nil {
		return err
	}
	b.State = next
	return nil
}

// Reload atomically swaps a Dirty skill's bundle for a freshly re-indexed
// one, transitioning Dirty -> Reloaded, and notifies subscribers with the
// diff between the old and new command sets.
func (r *Registry) Reload(manifest Manifest, dir string, commands []*Command) error {
	if manifest.Name == "" {
		return fmt.Errorf("skill manifest name is required")
	}

	r.mu.Lock()
	old, ok := r.bundles[manifest.Name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("skill %q not found, use Load", manifest.Name)
	}
	if _, err := Transition(old.State, Reloaded); err != nil {
		r.mu.Unlock()
		return err
	}

	next := &Bundle{Manifest: manifest, Dir: dir, Commands: commandMap(commands), State: Reloaded}
	r.bundles[manifest.Name] = next
	update := diffCommands(old, next)
	r.mu.Unlock()

	r.notify(update)
	return nil
}

// Remove transitions a skill to Removed after its directory disappears and
// the debounce window closes, then drops it from the registry.
func (r *Registry) Remove(skillName string) error {
	r.mu.Lock()
	b, ok := r.bundles[skillName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("skill %q not found", skillName)
	}
	if _, err := Transition(b.State, Removed); err != nil {
		r.mu.Unlock()
		return err
	}

	delete(r.bundles, skillName)
	removed := b.commandIdentities()
	r.mu.Unlock()

	r.notify(Update{Removed: removed})
	return nil
}

// ListCommands returns every registered command as a ToolRecord, sorted by
// skill.command identity for deterministic output.
func (r *Registry) ListCommands() []ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]ToolRecord, 0)
	for _, b := range r.bundles {
		for _, c := range b.Commands {
			records = append(records, toolRecord(b.Manifest, c))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SkillName+"."+records[i].CommandName < records[j].SkillName+"."+records[j].CommandName
	})
	return records
}

// GetCommand resolves a (skill, command) pair to its ToolRecord and
// Handler. The second return value is false if no such command exists.
func (r *Registry) GetCommand(skillName, commandName string) (ToolRecord, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bundles[skillName]
	if !ok {
		return ToolRecord{}, Handler{}, false
	}
	c, ok := b.Commands[commandName]
	if !ok {
		return ToolRecord{}, Handler{}, false
	}
	return toolRecord(b.Manifest, c), c.Handler, true
}

// State returns a skill's current lifecycle state.
func (r *Registry) State(skillName string) (LifecycleState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bundles[skillName]
	if !ok {
		return "", false
	}
	return b.State, true
}

// OnUpdate registers cb to be invoked after every reload cycle. It returns
// an unsubscribe function.
func (r *Registry) OnUpdate(cb UpdateFunc) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers = append(r.subscribers, cb)
	idx := len(r.subscribers) - 1
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.subscribers[idx] = nil
	}
}

func (r *Registry) notify(u Update) {
	if len(u.Added) == 0 && len(u.Modified) == 0 && len(u.Removed) == 0 {
		return
	}
	r.mu.RLock()
	subs := append([]UpdateFunc(nil), r.subscribers...)
	r.mu.RUnlock()

	for _, cb := range subs {
		if cb != nil {
			cb(u)
		}
	}
}

func commandMap(commands []*Command) map[string]*Command {
	m := make(map[string]*Command, len(commands))
	for _, c := range commands {
		m[c.Spec.Name] = c
	}
	return m
}

// diffCommands compares old and next bundles' command sets, classifying
// each skill.command identity as added, modified (present in both) or
// removed.
func diffCommands(old, next *Bundle) Update {
	var u Update
	for name := range next.Commands {
		id := next.Manifest.Name + "." + name
		if _, existed := old.Commands[name]; existed {
			u.Modified = append(u.Modified, id)
		} else {
			u.Added = append(u.Added, id)
		}
	}
	for name := range old.Commands {
		if _, stillThere := next.Commands[name]; !stillThere {
			u.Removed = append(u.Removed, old.Manifest.Name+"."+name)
		}
	}
	return u
}
