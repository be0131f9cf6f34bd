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

// Package skill implements the Skill Registry: name -> skill-bundle and
// skill.command -> handler resolution, and the Undiscovered -> Loaded ->
// Dirty -> Reloaded -> Removed bundle lifecycle driven by the Live-Wire
// Indexer (pkg/indexer).
package skill

import "context"

// Manifest is a skill bundle's declared identity, parsed from its
// directory's front matter. Name, Description and Version are required;
// the rest are optional routing hints.
type Manifest struct {
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Description     string   `yaml:"description"`
	RoutingKeywords []string `yaml:"routing_keywords,omitempty"`
	Intents         []string `yaml:"intents,omitempty"`
	Authors         []string `yaml:"authors,omitempty"`
}

// CommandSpec is the declared record for one command within a bundle.
type CommandSpec struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Category        string         `yaml:"category,omitempty"`
	InputSchema     map[string]any `yaml:"-"`
	CacheTTLSeconds int            `yaml:"cache_ttl_seconds,omitempty"`
	Pure            bool           `yaml:"pure,omitempty"`
	InjectRoot      bool           `yaml:"inject_root,omitempty"`
	InjectSettings  []string       `yaml:"inject_settings,omitempty"`

	// Isolated selects the handler flavor: false runs the command in-process
	// (fast path), true routes it through the Subprocess Pool (pkg/swarm).
	Isolated bool `yaml:"isolated,omitempty"`
}

// HandlerFunc is the in-process command implementation shape: args decoded
// from the caller's input against InputSchema, result returned as a map for
// JSON serialization back to the caller.
type HandlerFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Handler is what Registry.GetCommand resolves a (skill, command) pair to.
// Exactly one of Fn or Isolated is meaningful per spec.md §4.D's two
// handler flavors: an in-process handler is loadable and runs directly; an
// isolated handler has no Fn and is dispatched through pkg/swarm to the
// worker node registered under the owning skill's name; the Command's
// FilePath is not used for dispatch.
type Handler struct {
	Fn       HandlerFunc
	Isolated bool
}

// Command is a registered, bundle-scoped command: its declared spec plus
// the file it was discovered in and the routing weight assigned at index
// time. Commands are immutable per lookup — a reload produces a new
// *Command replacing the old one in the Registry, never a mutation in
// place.
type Command struct {
	Skill   string
	Spec    CommandSpec
	Handler Handler

	FilePath string
	Weight   float64
	ModTime  int64 // unix seconds, for the runner's (skill_mtime, args) cache key
}

// ToolRecord is the immutable, router/executor-facing projection of a
// Command — what list_commands and the Hybrid Router both consume.
type ToolRecord struct {
	SkillName       string
	CommandName     string
	Description     string
	InputSchema     map[string]any
	RoutingKeywords []string
	Intents         []string
	Category        string
	FilePath        string
	Weight          float64

	// CacheTTLSeconds, Isolated and ModTime are carried through for
	// pkg/runner: ModTime anchors the (skill_mtime, args_hash) cache-
	// soundness key, CacheTTLSeconds/Isolated pick the execution path
	// without a second Registry lookup.
	CacheTTLSeconds int
	Isolated        bool
	ModTime         int64
}

// toolRecord projects a Command plus its owning bundle's Manifest into a
// ToolRecord.
func toolRecord(m Manifest, c *Command) ToolRecord {
	return ToolRecord{
		SkillName:       m.Name,
		CommandName:     c.Spec.Name,
		Description:     c.Spec.Description,
		InputSchema:     c.Spec.InputSchema,
		RoutingKeywords: m.RoutingKeywords,
		Intents:         m.Intents,
		Category:        c.Spec.Category,
		FilePath:        c.FilePath,
		Weight:          c.Weight,
		CacheTTLSeconds: c.Spec.CacheTTLSeconds,
		Isolated:        c.Spec.Isolated,
		ModTime:         c.ModTime,
	}
}

// EmbeddingText is the text concatenation the Live-Wire Indexer embeds for
// a command: description + routing_keywords + intents, per spec.md §4.E
// step 2.
func EmbeddingText(m Manifest, c *Command) string {
	text := c.Spec.Description
	for _, kw := range m.RoutingKeywords {
		text += " " + kw
	}
	for _, in := range m.Intents {
		text += " " + in
	}
	return text
}
