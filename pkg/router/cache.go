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
	"fmt"
	"sync"
	"time"
)

// resultCache is an in-memory TTL cache of Route results keyed by the
// tuple (translated_query, intent, category_filter, threshold, limit,
// profile_name). The Indexer's reindex passes bust it wholesale via
// invalidate, rather than tracking per-skill entries, since a reload can
// change ranking for any query.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	enabled bool
}

type cacheEntry struct {
	results []Result
	expires time.Time
}

func newResultCache(ttl time.Duration, enabled bool) *resultCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &resultCache{ttl: ttl, entries: make(map[string]cacheEntry), enabled: enabled}
}

func cacheKey(query string, intent Intent, category CategoryFilter, threshold float64, limit int, profile string) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%.4f\x00%d\x00%s", query, intent, category, threshold, limit, profile)
}

func (c *resultCache) get(key string) ([]Result, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.results, true
}

func (c *resultCache) put(key string, results []Result) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{results: results, expires: time.Now().Add(c.ttl)}
}

// invalidate drops every cached entry. Called by the Router's subscription
// to skill.Registry.OnUpdate whenever a reload/remove cycle completes.
func (c *resultCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *resultCache) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.entries = make(map[string]cacheEntry)
	}
}
