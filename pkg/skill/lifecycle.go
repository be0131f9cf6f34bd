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

import "fmt"

// LifecycleState is a bundle's position in the Undiscovered -> Loaded ->
// Dirty -> Reloaded -> Removed state machine.
type LifecycleState string

const (
	Undiscovered LifecycleState = "undiscovered"
	Loaded       LifecycleState = "loaded"
	Dirty        LifecycleState = "dirty"
	Reloaded     LifecycleState = "reloaded"
	Removed      LifecycleState = "removed"
)

// transitions enumerates every legal (from, to) edge. Reloaded behaves as a
// second "settled" state (same outgoing edges as Loaded): once the Indexer
// completes a re-embedding pass, the bundle can go Dirty again on the next
// FS event or Removed if its directory disappears.
var transitions = map[LifecycleState]map[LifecycleState]bool{
	Undiscovered: {Loaded: true},
	Loaded:       {Dirty: true, Removed: true},
	Dirty:        {Reloaded: true, Removed: true},
	Reloaded:     {Dirty: true, Removed: true},
}

// Transition validates and returns the next state, or an error if (from, to)
// is not a legal edge.
func Transition(from, to LifecycleState) (LifecycleState, error) {
	if transitions[from][to] {
		return to, nil
	}
	return from, fmt.Errorf("illegal skill lifecycle transition %s -> %s", from, to)
}
