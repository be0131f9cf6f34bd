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
	"context"
	"fmt"

	hcplugin "github.com/hashicorp/go-plugin"

	"github.com/omnicore/omnicore/pkg/plugins"
)

// pluginEmbedder adapts an out-of-process plugins.EmbedderProvider to the
// Gateway interface.
type pluginEmbedder struct {
	cfg      Config
	provider plugins.EmbedderProvider
	client   *hcplugin.Client
	dim      int
}

func newPluginEmbedder(cfg Config) (*pluginEmbedder, error) {
	provider, client, err := plugins.Load(cfg.PluginPath)
	if err != nil {
		return nil, fmt.Errorf("load embedder plugin: %w", err)
	}

	settings := map[string]string{
		"model": cfg.Model,
		"host":  cfg.Host,
	}
	if err := provider.Initialize(context.Background(), settings); err != nil {
		client.Kill()
		return nil, fmt.Errorf("initialize embedder plugin: %w", err)
	}

	dim := cfg.Dimension
	if dim == 0 {
		dim, err = provider.Dimension(context.Background())
		if err != nil {
			client.Kill()
			return nil, fmt.Errorf("query embedder plugin dimension: %w", err)
		}
	}

	return &pluginEmbedder{cfg: cfg, provider: provider, client: client, dim: dim}, nil
}

func (e *pluginEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.provider.Embed(ctx, texts)
}

func (e *pluginEmbedder) Dimension() int      { return e.dim }
func (e *pluginEmbedder) BackendName() string { return "plugin:" + e.cfg.PluginPath }

func (e *pluginEmbedder) Close() error {
	err := e.provider.Shutdown(context.Background())
	e.client.Kill()
	return err
}
