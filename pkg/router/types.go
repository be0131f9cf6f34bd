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

// Package router implements the Hybrid Router: translate -> classify ->
// retrieve -> rank -> adaptive-retry over the Skill Registry.
package router

import "github.com/omnicore/omnicore/pkg/skill"

// Confidence is the labeled bucket a Result's final_score falls into.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Intent is the retrieval strategy chosen for a query.
type Intent string

const (
	IntentExact    Intent = "exact"
	IntentSemantic Intent = "semantic" // reserved; currently falls back to hybrid
	IntentHybrid   Intent = "hybrid"
)

// CategoryFilter narrows retrieval to a command category.
type CategoryFilter string

const (
	CategoryNone          CategoryFilter = ""
	CategoryFileDiscovery CategoryFilter = "file_discovery"
)

// Result is one ranked router hit. Identity is the (SkillName, CommandName)
// tuple; duplicates within one retrieval pass are deduped keeping the max
// FinalScore (see dedupeKeepMax in rrf.go).
type Result struct {
	SkillName       string
	CommandName     string
	Score           float64
	FinalScore      float64
	Confidence      Confidence
	RoutingKeywords []string
	Payload         skill.ToolRecord
}

// Options configures a single Route call. Zero value uses defaults.
type Options struct {
	Threshold   float64 // minimum final_score to keep a result, default profile's LowFloor
	Limit       int     // max results, default 10
	ProfileName string  // confidence profile name, default "balanced"
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.ProfileName == "" {
		o.ProfileName = "balanced"
	}
	return o
}
