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
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/omnicore/omnicore/pkg/ollama"
)

// ollamaEmbedMu serializes every Ollama embedding request across all
// ollamaEmbedder instances in the process. Ollama's llama runner crashes
// when it receives concurrent embedding requests against the same model,
// so every call funnels through this single mutex regardless of how many
// gateways or goroutines are in play.
var ollamaEmbedMu sync.Mutex

// ollamaEmbedder calls a local or remote Ollama server's /api/embeddings.
type ollamaEmbedder struct {
	cfg    Config
	client *ollama.Client
}

func newOllamaEmbedder(cfg Config) *ollamaEmbedder {
	return &ollamaEmbedder{
		cfg:    cfg,
		client: ollama.NewClientWithTimeout(cfg.Host, time.Duration(cfg.Timeout)*time.Second),
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *ollamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.MakeRequest(ctx, "/api/embeddings", ollamaEmbedRequest{
		Model: e.cfg.Model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama embed response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama embed request failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode ollama embed response: %w", err)
	}
	return parsed.Embedding, nil
}

func (e *ollamaEmbedder) Dimension() int      { return e.cfg.Dimension }
func (e *ollamaEmbedder) BackendName() string { return "ollama" }
func (e *ollamaEmbedder) Close() error        { return nil }
