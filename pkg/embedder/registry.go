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

package embedder

import (
	"fmt"

	"github.com/omnicore/omnicore/pkg/registry"
)

// NewGateway builds a Gateway from cfg, applying defaults and validating
// first. Unlike the teacher's embedder registry (which only ever wired its
// "ollama" case into the switch despite shipping full OpenAI and Cohere
// implementations), every backend type here is reachable.
func NewGateway(cfg Config) (Gateway, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case BackendOpenAI:
		return newOpenAIEmbedder(cfg), nil
	case BackendCohere:
		return newCohereEmbedder(cfg), nil
	case BackendOllama:
		return newOllamaEmbedder(cfg), nil
	case BackendPlugin:
		return newPluginEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder type: %q", cfg.Type)
	}
}

// Registry keeps multiple named Gateway instances alive at once, e.g. one
// per knowledge base when different collections embed with different
// models.
type Registry struct {
	base *registry.BaseRegistry[Gateway]
}

// NewRegistry constructs an empty Gateway registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Gateway]()}
}

// Add builds a Gateway from cfg and registers it under name.
func (r *Registry) Add(name string, cfg Config) error {
	gw, err := NewGateway(cfg)
	if err != nil {
		return fmt.Errorf("build gateway %q: %w", name, err)
	}
	return r.base.Register(name, gw)
}

// Get returns the named Gateway, if registered.
func (r *Registry) Get(name string) (Gateway, bool) {
	return r.base.Get(name)
}

// Remove closes and removes the named Gateway.
func (r *Registry) Remove(name string) error {
	gw, ok := r.base.Get(name)
	if !ok {
		return fmt.Errorf("gateway %q not found", name)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("close gateway %q: %w", name, err)
	}
	return r.base.Remove(name)
}

// CloseAll closes every registered Gateway.
func (r *Registry) CloseAll() error {
	var firstErr error
	for _, gw := range r.base.List() {
		if err := gw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.base.Clear()
	return firstErr
}
