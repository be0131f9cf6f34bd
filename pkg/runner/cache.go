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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// cacheEntry is one memoized pure-command result.
type cacheEntry struct {
	result   map[string]any
	skillMT  int64
	expires  time.Time
}

// resultCache memoizes the results of commands with cache_ttl_seconds>0
// (the only condition checked: skill.ToolRecord carries no purity flag,
// so a command is not checked for being pure) keyed by
// sha256(skill, command, canonical_json(args)). A hit additionally
// requires the skill's on-disk mtime to be unchanged since the entry was
// written, per spec.md §4.H step 3 — a bundle reload invalidates every
// cached result for that skill without the cache needing its own
// subscription to Registry.OnUpdate.
//
// get and put follow the same single-lock check-then-record shape as
// pkg/ratelimit's CheckAndRecord: the hit/miss decision and, on a miss, the
// eventual insert happen with the caller doing real work (the handler
// call) in between, so this is two calls (get, then put) under the same
// key rather than one lock held across the handler invocation — holding
// the lock across a slow or isolated call would serialize unrelated
// cache entries for no reason.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]cacheEntry)}
}

// cacheKey computes sha256(skill, command, canonical_json(args)) as a hex
// string. Canonicalization is achieved by marshaling a sorted-key
// representation, since encoding/json already sorts map keys on marshal.
func cacheKey(skill, command string, args map[string]any) (string, error) {
	canon, err := canonicalJSON(args)
	if err != nil {
		return "", fmt.Errorf("runner: canonicalize args: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(skill))
	h.Write([]byte{0})
	h.Write([]byte(command))
	h.Write([]byte{0})
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON marshals v with map keys in sorted order at every level,
// which encoding/json already guarantees for map[string]any — this helper
// exists to make that guarantee explicit and to fail loudly on non-JSON
// argument values instead of silently dropping them.
func canonicalJSON(v any) ([]byte, error) {
	normalized, err := normalizeForJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func normalizeForJSON(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			normalized, err := normalizeForJSON(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = normalized
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			normalized, err := normalizeForJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	default:
		return t, nil
	}
}

// get returns the cached result if present, unexpired, and skillMTime
// still matches mtime.
func (c *resultCache) get(key string, mtime int64) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) || entry.skillMT != mtime {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, mtime int64, ttl time.Duration, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, skillMT: mtime, expires: time.Now().Add(ttl)}
}
