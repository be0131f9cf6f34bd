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

package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnicore/omnicore/pkg/embedder"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/vector"
)

const skillsTable = "skills"

// Config configures the Indexer.
type Config struct {
	SkillsDir string `yaml:"skills_dir,omitempty"`

	// Debounce coalesces rapid filesystem events. Default: 500ms.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// EmbedRetries is how many times a failed embed is retried before the
	// bundle is marked Dirty. Default: 1.
	EmbedRetries int `yaml:"embed_retries,omitempty"`

	// EmbedBackoff is the delay between embed retries. Default: 200ms.
	EmbedBackoff time.Duration `yaml:"embed_backoff,omitempty"`
}

// Indexer runs the Scan -> Embed -> Persist -> Invalidate pipeline over a
// skills_dir, both on demand (ReindexBundle) and continuously via an
// fsnotify watcher with a coalescing debounce window.
type Indexer struct {
	cfg      Config
	embedder embedder.Gateway
	store    vector.Store
	registry *skill.Registry

	watcher *bundleWatcher

	// passMu serializes reindex passes: at most one runs at a time. pending
	// tracks whether another pass was requested while one was in flight, so
	// exactly one follow-up pass runs afterward, per spec.md §4.E's
	// concurrency rule.
	passMu  sync.Mutex
	running bool
	pending bool
}

// New creates an Indexer. embedder and store must already be configured
// (e.g. store's table dimension matches embedder.Dimension()).
func New(cfg Config, emb embedder.Gateway, store vector.Store, registry *skill.Registry) *Indexer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.EmbedRetries <= 0 {
		cfg.EmbedRetries = 1
	}
	if cfg.EmbedBackoff <= 0 {
		cfg.EmbedBackoff = 200 * time.Millisecond
	}
	return &Indexer{cfg: cfg, embedder: emb, store: store, registry: registry}
}

// Scan performs a full, one-time walk of skills_dir, loading every bundle
// found into the Registry.
func (ix *Indexer) Scan(ctx context.Context) error {
	dirs, err := listBundleDirs(ix.cfg.SkillsDir)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := ix.loadOrReload(ctx, dir); err != nil {
			slog.Warn("failed to index skill bundle", "dir", dir, "error", err)
		}
	}
	return nil
}

// Start begins the fsnotify watch loop. Each coalesced bundle event
// triggers ReindexBundle for that bundle only, never a full rescan.
func (ix *Indexer) Start(ctx context.Context) error {
	w, err := newBundleWatcher(ix.cfg.SkillsDir, ix.cfg.Debounce)
	if err != nil {
		return fmt.Errorf("start skill watcher: %w", err)
	}
	ix.watcher = w

	events, err := w.Start(ctx)
	if err != nil {
		return err
	}

	go func() {
		for ev := range events {
			if ev.Removed {
				if err := ix.removeBundle(ctx, ev.BundleDir); err != nil {
					slog.Warn("failed to remove skill bundle", "dir", ev.BundleDir, "error", err)
				}
				continue
			}
			if err := ix.ReindexBundle(ctx, ev.BundleDir); err != nil {
				slog.Warn("failed to reindex skill bundle", "dir", ev.BundleDir, "error", err)
			}
		}
	}()

	return nil
}

// Stop stops the watcher.
func (ix *Indexer) Stop() error {
	if ix.watcher == nil {
		return nil
	}
	return ix.watcher.Stop()
}

// ReindexBundle runs one Scan->Embed->Persist->Invalidate pass for a single
// bundle directory. At most one pass runs at a time; a call arriving
// mid-pass schedules exactly one follow-up pass rather than queuing
// unboundedly.
func (ix *Indexer) ReindexBundle(ctx context.Context, dir string) error {
	ix.passMu.Lock()
	if ix.running {
		ix.pending = true
		ix.passMu.Unlock()
		return nil
	}
	ix.running = true
	ix.passMu.Unlock()

	err := ix.runPass(ctx, dir)

	ix.passMu.Lock()
	ix.running = false
	followUp := ix.pending
	ix.pending = false
	ix.passMu.Unlock()

	if followUp {
		return ix.ReindexBundle(ctx, dir)
	}
	return err
}

func (ix *Indexer) runPass(ctx context.Context, dir string) error {
	if _, name, ok := ix.registryStateForDir(dir); ok {
		if err := ix.registry.MarkDirty(name); err != nil {
			slog.Warn("mark dirty before reindex", "skill", name, "error", err)
		}
	}
	return ix.loadOrReload(ctx, dir)
}

// loadOrReload Scans dir's manifest, Embeds each command's routing text,
// Persists rows into table "skills", then Invalidates the Registry. A
// command that fails to parse is skipped, not fatal to the bundle. An
// embedding failure is retried once with backoff before the bundle is left
// for a later pass.
func (ix *Indexer) loadOrReload(ctx context.Context, dir string) error {
	manifest, commands, err := parseBundle(dir)
	if err != nil {
		return err
	}

	texts := make([]string, len(commands))
	for i, c := range commands {
		texts[i] = skill.EmbeddingText(manifest, c)
	}

	vectors, err := ix.embedWithRetry(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed commands for skill %q: %w", manifest.Name, err)
	}

	rows := make([]vector.Row, len(commands))
	for i, c := range commands {
		rows[i] = vector.Row{
			ID:      manifest.Name + "." + c.Spec.Name,
			Vector:  vectors[i],
			Content: texts[i],
			Metadata: map[string]any{
				"skill":            manifest.Name,
				"command":          c.Spec.Name,
				"routing_keywords": manifest.RoutingKeywords,
				"weight":           c.Weight,
				"file_path":        c.FilePath,
				"mtime":            c.ModTime,
			},
		}
	}
	if err := ix.store.Upsert(ctx, skillsTable, rows); err != nil {
		// Storage errors abort the pass and keep the previous snapshot live.
		return fmt.Errorf("persist skill %q rows: %w", manifest.Name, err)
	}

	if _, exists := ix.registry.State(manifest.Name); exists {
		return ix.registry.Reload(manifest, dir, commands)
	}
	return ix.registry.Load(manifest, dir, commands)
}

func (ix *Indexer) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var lastErr error
	for attempt := 0; attempt <= ix.cfg.EmbedRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(ix.cfg.EmbedBackoff)
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (ix *Indexer) removeBundle(ctx context.Context, dir string) error {
	_, name, ok := ix.registryStateForDir(dir)
	if !ok {
		return nil
	}
	if err := ix.store.Delete(ctx, skillsTable, nil, map[string]any{"skill": name}); err != nil {
		return fmt.Errorf("delete rows for removed skill %q: %w", name, err)
	}
	return ix.registry.Remove(name)
}

// registryStateForDir looks up a bundle's skill name from its directory by
// re-reading its manifest (cheap: one small file read), since the Registry
// is keyed by skill name, not directory path.
func (ix *Indexer) registryStateForDir(dir string) (skill.LifecycleState, string, bool) {
	manifest, _, err := parseBundle(dir)
	if err != nil {
		return "", "", false
	}
	state, ok := ix.registry.State(manifest.Name)
	return state, manifest.Name, ok
}
