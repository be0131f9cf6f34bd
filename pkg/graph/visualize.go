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

package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Visualize returns a Mermaid flowchart dump of the compiled graph, for
// debugging, per spec.md §4.I.
func (g *Graph) Visualize() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fmt.Fprintf(&b, "    %s%s\n", id, nodeShape(id, g))
	}

	for _, id := range ids {
		for _, to := range g.edges[id] {
			fmt.Fprintf(&b, "    %s --> %s\n", id, to)
		}
		if ce, ok := g.conditional[id]; ok {
			labels := make([]string, 0, len(ce.routes))
			for label := range ce.routes {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Fprintf(&b, "    %s -- %s --> %s\n", id, label, ce.routes[label])
			}
		}
	}

	if len(g.interruptBefore) > 0 {
		names := sortedNames(g.interruptBefore)
		fmt.Fprintf(&b, "    %%%% interrupt_before: %s\n", strings.Join(names, ", "))
	}
	if len(g.interruptAfter) > 0 {
		names := sortedNames(g.interruptAfter)
		fmt.Fprintf(&b, "    %%%% interrupt_after: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "    %%%% entry: %s\n", g.entry)

	return b.String()
}

func nodeShape(id NodeID, g *Graph) string {
	n := g.nodes[id]
	if n.kind == kindSkill {
		return fmt.Sprintf("(%s.%s)", n.skl.Skill, n.skl.Command)
	}
	return "[fn]"
}

func sortedNames(set map[NodeID]bool) []string {
	names := make([]string, 0, len(set))
	for id := range set {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return names
}
