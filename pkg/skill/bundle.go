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

// Bundle is one skill directory's loaded state: its manifest, the commands
// discovered in its scripts, and where it sits in the lifecycle state
// machine.
type Bundle struct {
	Manifest Manifest
	Dir      string
	Commands map[string]*Command // keyed by command.Name
	State    LifecycleState
}

// commandIdentities returns every "skill.command" identity in b, for
// diffing against a prior bundle revision.
func (b *Bundle) commandIdentities() []string {
	ids := make([]string, 0, len(b.Commands))
	for name := range b.Commands {
		ids = append(ids, b.Manifest.Name+"."+name)
	}
	return ids
}
