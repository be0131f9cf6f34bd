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

package router

import (
	"context"
	"testing"

	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/vector"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) Dimension() int      { return f.dim }
func (f *fakeEmbedder) BackendName() string { return "fake" }
func (f *fakeEmbedder) Close() error        { return nil }

func newTestRouter(t *testing.T) (*Router, vector.Store, *skill.Registry) {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatal(err)
	}
	store := vector.NewStore(provider, 3)
	registry := skill.NewRegistry()

	cmd, err := skill.NewIsolatedCommand("weather", skill.CommandSpec{
		Name:        "current",
		Description: "Get the current weather for a city.",
		Category:    "lookup",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Load(skill.Manifest{
		Name:            "weather",
		Description:     "Weather lookups",
		RoutingKeywords: []string{"weather", "forecast"},
	}, "/bundles/weather", []*skill.Command{cmd}); err != nil {
		t.Fatal(err)
	}

	if err := store.Upsert(context.Background(), "skills", []vector.Row{{
		ID:      "weather.current",
		Vector:  []float32{1, 0, 0},
		Content: "Get the current weather for a city. weather forecast",
	}}); err != nil {
		t.Fatal(err)
	}

	r := New(Config{}, store, &fakeEmbedder{dim: 3}, registry, nil)
	return r, store, registry
}

func TestRoute_HybridQueryFindsCommand(t *testing.T) {
	r, _, _ := newTestRouter(t)
	defer r.Close()

	results, err := r.Route(context.Background(), "what's the weather forecast", Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].SkillName != "weather" || results[0].CommandName != "current" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestRoute_ExactIntentUsesKeywordOnly(t *testing.T) {
	r, _, _ := newTestRouter(t)
	defer r.Close()

	intent, _ := classifyIntent("weather.current")
	if intent != IntentExact {
		t.Fatalf("expected exact intent, got %s", intent)
	}

	results, err := r.Route(context.Background(), "weather.current", Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestRoute_UnknownProfileErrors(t *testing.T) {
	r, _, _ := newTestRouter(t)
	defer r.Close()

	if _, err := r.Route(context.Background(), "weather", Options{ProfileName: "nonexistent"}); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestRoute_CacheHitAvoidsSecondStoreQuery(t *testing.T) {
	r, store, registry := newTestRouter(t)
	defer r.Close()
	r.SetCacheEnabled(true)

	first, err := r.Route(context.Background(), "weather forecast", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 result before the store row is removed, got %d", len(first))
	}

	// Remove the only row: a second Route that reached the store would find
	// nothing, so an equal result count shows the cached result was served.
	if err := store.Delete(context.Background(), "skills", []string{"weather.current"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := registry.State("weather"); !ok {
		t.Fatal("expected weather to be loaded")
	}

	second, err := r.Route(context.Background(), "weather forecast", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Errorf("expected cached result set to match, got %d vs %d", len(first), len(second))
	}
}

func TestDedupeKeepMax(t *testing.T) {
	in := []Result{
		{SkillName: "a", CommandName: "b", FinalScore: 0.5},
		{SkillName: "a", CommandName: "b", FinalScore: 0.9},
		{SkillName: "c", CommandName: "d", FinalScore: 0.7},
	}
	out := dedupeKeepMax(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped results, got %d", len(out))
	}
	if out[0].SkillName != "a" || out[0].FinalScore != 0.9 {
		t.Errorf("expected a.b with score 0.9 first, got %+v", out[0])
	}
}

func TestProfile_ValidateRejectsNonDecreasingThresholds(t *testing.T) {
	p := Profile{Name: "bad", HighThreshold: 0.5, MediumThreshold: 0.6, LowFloor: 0.1}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestProfile_ValidateRejectsCapsAboveOne(t *testing.T) {
	p := Profile{Name: "bad", HighThreshold: 0.8, HighCap: 1.5, MediumThreshold: 0.5, MediumCap: 0.8, LowFloor: 0.1}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
