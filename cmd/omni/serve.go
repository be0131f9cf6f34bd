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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/omnicore/omnicore/pkg/config"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/router"
)

// ServeCmd runs the /route HTTP endpoint over a live app, restarting the
// Indexer's fsnotify watcher so disk edits to skill bundles stream through
// without a restart (spec.md §2's "feeds F within the debounce window
// without restart").
type ServeCmd struct {
	Port int `help:"Override the config file's server.port."`
}

type routeRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Profile   string  `json:"profile,omitempty"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	a, err := bootstrap(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()
	obs := a.obs

	if err := a.indexer.Start(ctx); err != nil {
		return fmt.Errorf("start skill watcher: %w", err)
	}
	defer a.indexer.Stop()

	if c.Port != 0 {
		a.cfg.Server.Port = c.Port
	}

	mux := http.NewServeMux()
	mux.Handle("/route", observability.HTTPMiddleware(obs.Tracer(), obs.Metrics())(routeHandler(a)))
	if obs.MetricsEnabled() {
		mux.Handle(obs.MetricsEndpoint(), obs.MetricsHandler())
	}
	handler := corsMiddleware(a.cfg.Server.CORS, mux)

	srv := &http.Server{
		Addr:    a.cfg.Server.Address(),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func routeHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req routeRequest
		switch r.Method {
		case http.MethodGet:
			req.Query = r.URL.Query().Get("query")
			if limit := r.URL.Query().Get("limit"); limit != "" {
				req.Limit, _ = strconv.Atoi(limit)
			}
		case http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if req.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		results, err := a.router.Route(r.Context(), req.Query, router.Options{
			Limit:       req.Limit,
			Threshold:   req.Threshold,
			ProfileName: req.Profile,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func corsMiddleware(cfg *config.CORSConfig, next http.Handler) http.Handler {
	if cfg == nil {
		return next
	}
	origins := strings.Join(cfg.AllowedOrigins, ",")
	methods := strings.Join(cfg.AllowedMethods, ",")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", methods)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
