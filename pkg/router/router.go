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
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omnicore/omnicore/pkg/embedder"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/vector"
)

// Config configures a Router.
type Config struct {
	// Table is the table name in the Vector Store. Default: "skills".
	Table string `yaml:"table,omitempty"`

	// CacheTTL bounds how long a routing result may be served from cache.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`

	// CacheEnabled turns on the routing-result cache.
	CacheEnabled bool `yaml:"cache_enabled,omitempty"`

	// MaxRetries is the adaptive-retry attempt budget. Default: 2.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryStep is the confidence-threshold reduction applied per retry.
	// Default: 0.1.
	RetryStep float64 `yaml:"retry_step,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = "skills"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.RetryStep <= 0 {
		c.RetryStep = 0.1
	}
	return c
}

// Router implements translate -> classify -> retrieve -> rank ->
// adaptive-retry over a Skill Registry backed by a Vector Store.
type Router struct {
	cfg        Config
	store      vector.Store
	embedder   embedder.Gateway
	registry   *skill.Registry
	translator Translator

	mu       sync.RWMutex
	profiles map[string]Profile

	cache       *resultCache
	unsubscribe func()

	obs     *observability.Manager
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// New builds a Router. translator may be nil (translation is then a no-op
// plus the URL-fallback heuristic). The Router subscribes to registry's
// on_update so reindex cycles bust the result cache automatically.
func New(cfg Config, store vector.Store, emb embedder.Gateway, registry *skill.Registry, translator Translator) *Router {
	cfg = cfg.withDefaults()
	r := &Router{
		cfg:        cfg,
		store:      store,
		embedder:   emb,
		registry:   registry,
		translator: translator,
		profiles:   defaultProfiles(),
		cache:      newResultCache(cfg.CacheTTL, cfg.CacheEnabled),
	}
	r.unsubscribe = registry.OnUpdate(func(skill.Update) { r.cache.invalidate() })
	return r
}

// Close unsubscribes from the Registry's update notifications.
func (r *Router) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// SetObservability attaches obs to r, wrapping Route in an OTel span and
// recording call-count/latency metrics under the same Prometheus registry
// the Subprocess Pool uses. Safe to call with a nil obs.
func (r *Router) SetObservability(obs *observability.Manager) error {
	if obs == nil {
		return nil
	}
	meter := obs.Meter("router")
	calls, err := meter.Int64Counter("router_route_calls_total",
		metric.WithDescription("Total Route invocations, labeled by outcome"))
	if err != nil {
		return err
	}
	latency, err := meter.Float64Histogram("router_route_latency_seconds",
		metric.WithDescription("Route latency"))
	if err != nil {
		return err
	}
	r.obs = obs
	r.calls = calls
	r.latency = latency
	return nil
}

// RegisterProfile adds or replaces a named confidence profile, rejecting
// one whose thresholds don't strictly decrease or whose caps exceed 1.0.
func (r *Router) RegisterProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p
	return nil
}

// SetCacheEnabled toggles the result cache at runtime.
func (r *Router) SetCacheEnabled(enabled bool) {
	r.cache.setEnabled(enabled)
}

// Route runs the full Hybrid Router pipeline for query.
func (r *Router) Route(ctx context.Context, query string, opts Options) ([]Result, error) {
	ctx, span := r.obs.Tracer().Start(ctx, observability.SpanRouterRoute)
	start := time.Now()
	var outcome string
	defer func() {
		r.recordRouteMetric(ctx, outcome, time.Since(start))
		span.End()
	}()

	opts = opts.withDefaults()

	r.mu.RLock()
	profile, ok := r.profiles[opts.ProfileName]
	r.mu.RUnlock()
	if !ok {
		outcome = "error"
		err := fmt.Errorf("router: unknown confidence profile %q", opts.ProfileName)
		r.obs.Tracer().RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("router.profile", profile.Name))

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = profile.LowFloor
	}

	translated := translateQuery(ctx, query, r.translator)
	intent, category := classifyIntent(translated)

	key := cacheKey(translated, intent, category, threshold, opts.Limit, profile.Name)
	if cached, ok := r.cache.get(key); ok {
		outcome = "cache_hit"
		return cached, nil
	}

	var results []Result
	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		results, err = r.retrieveAndRank(ctx, translated, intent, category, profile, threshold, opts.Limit)
		if err != nil {
			outcome = "error"
			r.obs.Tracer().RecordError(span, err)
			return nil, err
		}
		if len(results) >= opts.Limit || attempt == r.cfg.MaxRetries {
			break
		}
		threshold -= r.cfg.RetryStep
		if threshold < 0 {
			threshold = 0
		}
	}

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	r.cache.put(key, results)
	outcome = "success"
	span.SetAttributes(attribute.Int("router.result_count", len(results)))
	return results, nil
}

// recordRouteMetric records a Route invocation's outcome and latency,
// no-op if SetObservability was never called.
func (r *Router) recordRouteMetric(ctx context.Context, outcome string, d time.Duration) {
	if r.calls == nil || r.latency == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.calls.Add(ctx, 1, attrs)
	r.latency.Record(ctx, d.Seconds())
}

// retrieveAndRank runs retrieval steps 3-5: dispatching to the keyword-only
// or hybrid leg per intent, resolving hits against the Registry, labeling
// confidence, and deduping by (skill, command).
func (r *Router) retrieveAndRank(ctx context.Context, query string, intent Intent, category CategoryFilter, profile Profile, threshold float64, limit int) ([]Result, error) {
	fetchLimit := limit * 4
	if fetchLimit < limit {
		fetchLimit = limit
	}

	var hits []vector.HybridResult
	var err error
	switch intent {
	case IntentExact:
		hits, err = r.store.SearchKeyword(ctx, r.cfg.Table, []string{strings.ToLower(query)}, fetchLimit)
	default: // IntentSemantic reserved, currently falls back to hybrid per spec.md §4.F step 3
		vectors, embedErr := r.embedder.EmbedBatch(ctx, []string{query})
		if embedErr != nil {
			return nil, fmt.Errorf("router: embed query: %w", embedErr)
		}
		var queryVec []float32
		if len(vectors) > 0 {
			queryVec = vectors[0]
		}
		hits, err = r.store.SearchHybrid(ctx, r.cfg.Table, queryVec, normalizeQueryParts(query), fetchLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("router: retrieve: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		skillName, commandName := parseToolID(h.ID)
		if skillName == commandName {
			continue // meta/skill-level row, not a command
		}

		record, _, ok := r.registry.GetCommand(skillName, commandName)
		if !ok {
			continue // stale row from a removed/renamed bundle
		}
		if category != CategoryNone && record.Category != string(category) {
			continue
		}

		label, confidence, ok := profile.Label(h.Score)
		if !ok || confidence < threshold {
			continue
		}

		results = append(results, Result{
			SkillName:       skillName,
			CommandName:     commandName,
			Score:           h.Score,
			FinalScore:      confidence,
			Confidence:      label,
			RoutingKeywords: record.RoutingKeywords,
			Payload:         record,
		})
	}

	return dedupeKeepMax(results), nil
}

// parseToolID splits a skill.command identity into its two parts: the
// segment before the first '.' is the skill, everything after is the
// command. An id with no dot is treated as (id, id) directly, which the
// meta-row check in retrieveAndRank then drops.
func parseToolID(id string) (skillName, commandName string) {
	idx := strings.Index(id, ".")
	if idx < 0 {
		return id, id
	}
	return id[:idx], id[idx+1:]
}
