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

package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omnicore/omnicore/pkg/skill"
)

type echoArgs struct {
	City string `json:"city" jsonschema:"required"`
}

func newTestRegistry(t *testing.T, cacheTTL int, calls *int) *skill.Registry {
	t.Helper()
	registry := skill.NewRegistry()

	cmd, err := skill.NewCommand("weather", skill.CommandSpec{
		Name:            "current",
		Description:     "Get the current weather for a city.",
		CacheTTLSeconds: cacheTTL,
		Pure:            true,
	}, func(ctx context.Context, args echoArgs) (map[string]any, error) {
		*calls++
		return map[string]any{"city": args.City, "temp_f": 72}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	cmd.ModTime = 1000

	if err := registry.Load(skill.Manifest{Name: "weather", Description: "Weather lookups"}, "/bundles/weather", []*skill.Command{cmd}); err != nil {
		t.Fatal(err)
	}
	return registry
}

func TestRun_InProcessHandlerExecutes(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 0, &calls)
	r, err := New(Config{Registry: registry})
	if err != nil {
		t.Fatal(err)
	}

	result, err := r.Run(context.Background(), "weather", "current", map[string]any{"city": "Boston"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result["city"] != "Boston" {
		t.Errorf("unexpected result: %+v", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 0, &calls)
	r, _ := New(Config{Registry: registry})

	_, err := r.Run(context.Background(), "weather", "forecast", nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestRun_MissingRequiredArgRejected(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 0, &calls)
	r, _ := New(Config{Registry: registry})

	_, err := r.Run(context.Background(), "weather", "current", map[string]any{})
	if !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("expected ErrInvalidArgs, got %v", err)
	}
	if calls != 0 {
		t.Errorf("handler must not run when args are invalid, got %d calls", calls)
	}
}

func TestRun_CachesResultForPureCommand(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 60, &calls)
	r, _ := New(Config{Registry: registry})

	args := map[string]any{"city": "Boston"}
	if _, err := r.Run(context.Background(), "weather", "current", args); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), "weather", "current", args); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected handler to run once due to caching, got %d calls", calls)
	}
}

func TestRun_CacheMissOnDifferentArgs(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 60, &calls)
	r, _ := New(Config{Registry: registry})

	if _, err := r.Run(context.Background(), "weather", "current", map[string]any{"city": "Boston"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), "weather", "current", map[string]any{"city": "Denver"}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls for distinct args, got %d", calls)
	}
}

func TestRun_CacheInvalidatedByBundleReload(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, 60, &calls)
	r, _ := New(Config{Registry: registry})

	args := map[string]any{"city": "Boston"}
	if _, err := r.Run(context.Background(), "weather", "current", args); err != nil {
		t.Fatal(err)
	}

	cmd, err := skill.NewCommand("weather", skill.CommandSpec{
		Name:            "current",
		Description:     "Get the current weather for a city.",
		CacheTTLSeconds: 60,
		Pure:            true,
	}, func(ctx context.Context, args echoArgs) (map[string]any, error) {
		calls++
		return map[string]any{"city": args.City, "temp_f": 72}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	cmd.ModTime = 2000 // simulates a reload after an on-disk edit
	if err := registry.Reload(skill.Manifest{Name: "weather", Description: "Weather lookups"}, "/bundles/weather", []*skill.Command{cmd}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Run(context.Background(), "weather", "current", args); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected cache to be bypassed after mtime changed via reload, got %d calls", calls)
	}
}

func TestRun_IsolatedCommandWithoutSwarmIsUnreachable(t *testing.T) {
	registry := skill.NewRegistry()
	cmd, err := skill.NewIsolatedCommand("weather", skill.CommandSpec{
		Name:        "radar",
		Description: "Get radar imagery.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Load(skill.Manifest{Name: "weather", Description: "Weather lookups"}, "/bundles/weather", []*skill.Command{cmd}); err != nil {
		t.Fatal(err)
	}

	r, _ := New(Config{Registry: registry})
	_, err = r.Run(context.Background(), "weather", "radar", nil)
	if !errors.Is(err, ErrWorkerUnreachable) {
		t.Errorf("expected ErrWorkerUnreachable, got %v", err)
	}
}

func TestRun_ExecutionTimeout(t *testing.T) {
	registry := skill.NewRegistry()
	cmd, err := skill.NewCommand("slow", skill.CommandSpec{
		Name:        "op",
		Description: "A slow operation.",
	}, func(ctx context.Context, args struct{}) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Load(skill.Manifest{Name: "slow", Description: "Slow"}, "/bundles/slow", []*skill.Command{cmd}); err != nil {
		t.Fatal(err)
	}

	r, _ := New(Config{Registry: registry, CallTimeout: 10 * time.Millisecond})
	_, err = r.Run(context.Background(), "slow", "op", nil)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("expected ErrExecutionTimeout, got %v", err)
	}
}

func TestCacheKey_StableAcrossMapKeyOrder(t *testing.T) {
	k1, err := cacheKey("s", "c", map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := cacheKey("s", "c", map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Errorf("expected stable cache key regardless of map construction order, got %s vs %s", k1, k2)
	}
}
