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

import "testing"

func TestTransition_LegalEdges(t *testing.T) {
	cases := []struct {
		from, to LifecycleState
	}{
		{Undiscovered, Loaded},
		{Loaded, Dirty},
		{Dirty, Reloaded},
		{Reloaded, Dirty},
		{Loaded, Removed},
		{Reloaded, Removed},
	}
	for _, c := range cases {
		if _, err := Transition(c.from, c.to); err != nil {
			t.Errorf("Transition(%s, %s) should be legal, got error: %v", c.from, c.to, err)
		}
	}
}

func TestTransition_IllegalEdges(t *testing.T) {
	cases := []struct {
		from, to LifecycleState
	}{
		{Undiscovered, Dirty},
		{Undiscovered, Removed},
		{Loaded, Reloaded},
		{Removed, Loaded},
		{Dirty, Loaded},
	}
	for _, c := range cases {
		if _, err := Transition(c.from, c.to); err == nil {
			t.Errorf("Transition(%s, %s) should be illegal", c.from, c.to)
		}
	}
}
