// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/omnicore/omnicore/pkg/config"
	"github.com/omnicore/omnicore/pkg/embedder"
	"github.com/omnicore/omnicore/pkg/indexer"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/router"
	"github.com/omnicore/omnicore/pkg/runner"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/swarm"
	"github.com/omnicore/omnicore/pkg/vector"
)

// app holds every subsystem built from a loaded Config, wired in the
// leaves-first dependency order spec.md §2 lays out: Vector Store and
// Embedding Gateway first, then the Registry/Indexer pair, then Router
// and Runner (and the Subprocess Pool behind it). No Checkpoint Store,
// Workflow Graph or OODA Executor is built here. cmd/omni's subcommands
// each use the slice of app they need.
type app struct {
	cfg *cfgpkg.Config

	embedder embedder.Gateway
	store    vector.Store
	registry *skill.Registry
	indexer  *indexer.Indexer
	router   *router.Router
	runner   *runner.Runner
	swarmMgr *swarm.Manager
	obs      *observability.Manager
}

// newApp builds every subsystem from cfg. Embedder model may be overridden
// by OMNI_EMBEDDING_MODEL per spec.md §6's environment variables.
func newApp(ctx context.Context, cfg *cfgpkg.Config) (*app, error) {
	embCfg := cfg.Embedder
	if model := os.Getenv("OMNI_EMBEDDING_MODEL"); model != "" {
		embCfg.Model = model
	}
	emb, err := embedder.NewGateway(embCfg)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	vecCfg := cfg.Vector
	vecCfg.SetDefaults()
	provider, err := vector.NewProvider(&vecCfg)
	if err != nil {
		return nil, fmt.Errorf("build vector provider: %w", err)
	}
	store := vector.NewStore(provider, emb.Dimension())

	registry := skill.NewRegistry()

	ix := indexer.New(cfg.Indexer, emb, store, registry)

	obs, err := observability.NewFromConfig(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("build observability manager: %w", err)
	}

	var swarmMgr *swarm.Manager
	if len(cfg.Swarm) > 0 {
		swarmMgr = swarm.NewManager()
		if err := swarmMgr.SetObservability(obs); err != nil {
			return nil, fmt.Errorf("instrument swarm manager: %w", err)
		}
		for name, w := range cfg.Swarm {
			_, err := swarmMgr.Register(swarm.Config{
				Name:            name,
				Command:         w.Command,
				Args:            w.Args,
				Env:             w.Env,
				ConnectTimeout:  time.Duration(w.ConnectTimeoutSeconds) * time.Second,
				ExecuteTimeout:  time.Duration(w.ExecuteTimeoutSeconds) * time.Second,
				MaxRetries:      w.MaxRetries,
				RetryCooldown:   time.Duration(w.RetryCooldownSeconds) * time.Second,
				CircuitCooldown: time.Duration(w.CircuitCooldownSeconds) * time.Second,
			})
			if err != nil {
				return nil, fmt.Errorf("register swarm worker %q: %w", name, err)
			}
		}
	}

	run, err := runner.New(runner.Config{
		Registry:    registry,
		Swarm:       swarmMgr,
		CallTimeout: time.Duration(cfg.Runner.CallTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}
	run.SetObservability(obs)

	r := router.New(cfg.Router, store, emb, registry, nil)
	if err := r.SetObservability(obs); err != nil {
		return nil, fmt.Errorf("instrument router: %w", err)
	}

	if err := ix.Scan(ctx); err != nil {
		return nil, fmt.Errorf("initial skill scan: %w", err)
	}

	return &app{
		cfg:      cfg,
		embedder: emb,
		store:    store,
		registry: registry,
		indexer:  ix,
		router:   r,
		runner:   run,
		swarmMgr: swarmMgr,
		obs:      obs,
	}, nil
}

// Close releases the embedder's and router's held resources. The vector
// Store/Provider has no persistent handle worth closing for the file-backed
// chromem default; remote providers close via their own Provider.Close,
// reached through the store only by Provider methods this app doesn't
// expose directly — callers needing that lifecycle own the provider.
func (a *app) Close() {
	a.router.Close()
	if err := a.embedder.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close embedder: %v\n", err)
	}
	if a.swarmMgr != nil {
		if err := a.swarmMgr.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: close swarm manager: %v\n", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.obs.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: observability shutdown: %v\n", err)
	}
}

// configHome resolves PRJ_CONFIG_HOME per spec.md §6, falling back to the
// current directory's ./omni.yaml.
func configHome() string {
	if dir := os.Getenv("PRJ_CONFIG_HOME"); dir != "" {
		return dir + "/omni.yaml"
	}
	return "omni.yaml"
}
