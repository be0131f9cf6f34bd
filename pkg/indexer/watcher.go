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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// bundleEvent is a coalesced change under one bundle directory.
type bundleEvent struct {
	BundleDir string
	Removed   bool
}

// bundleWatcher watches skillsDir for create/modify/delete/rename events
// under any immediate bundle subdirectory, coalescing rapid-fire events
// into one bundleEvent per bundle per debounce window — the same
// pending-events-map-plus-time.AfterFunc shape as the teacher's
// rag.FileWatcher, generalized from per-document events to per-bundle
// events.
type bundleWatcher struct {
	watcher   *fsnotify.Watcher
	skillsDir string
	debounce  time.Duration
	events    chan bundleEvent

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]bool // bundleDir -> removed
	timer   *time.Timer
}

func newBundleWatcher(skillsDir string, debounce time.Duration) (*bundleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &bundleWatcher{
		watcher:   w,
		skillsDir: skillsDir,
		debounce:  debounce,
		events:    make(chan bundleEvent, 64),
		pending:   make(map[string]bool),
	}, nil
}

// Start begins watching skillsDir and its immediate bundle subdirectories.
func (w *bundleWatcher) Start(ctx context.Context) (<-chan bundleEvent, error) {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.watcher.Add(w.skillsDir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(w.skillsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				if err := w.watcher.Add(filepath.Join(w.skillsDir, e.Name())); err != nil {
					slog.Warn("failed to watch bundle directory", "path", e.Name(), "error", err)
				}
			}
		}
	}

	go w.loop()
	return w.events, nil
}

// Stop stops watching.
func (w *bundleWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.watcher.Close()
}

func (w *bundleWatcher) loop() {
	defer close(w.events)

	flush := func() {
		w.mu.Lock()
		pending := w.pending
		w.pending = make(map[string]bool)
		w.mu.Unlock()

		for dir, removed := range pending {
			select {
			case w.events <- bundleEvent{BundleDir: dir, Removed: removed}:
			case <-w.ctx.Done():
				return
			}
		}
	}

	for {
		select {
		case <-w.ctx.Done():
			if w.timer != nil {
				w.timer.Stop()
			}
			flush()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			bundleDir := w.bundleDirFor(event.Name)
			if bundleDir == "" {
				continue
			}

			removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && event.Name == bundleDir
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						slog.Warn("failed to watch new bundle directory", "path", event.Name, "error", err)
					}
				}
			}

			w.mu.Lock()
			w.pending[bundleDir] = removed || w.pending[bundleDir]
			w.mu.Unlock()

			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, flush)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("skill bundle watcher error", "path", w.skillsDir, "error", err)
		}
	}
}

// bundleDirFor maps an arbitrary changed path to its owning immediate
// bundle subdirectory of skillsDir, or "" if path is not under one.
func (w *bundleWatcher) bundleDirFor(path string) string {
	rel, err := filepath.Rel(w.skillsDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.SplitN(rel, string(filepath.Separator), 2)
	return filepath.Join(w.skillsDir, parts[0])
}
