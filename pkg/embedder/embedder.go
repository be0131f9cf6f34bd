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

// Package embedder is the Embedding Gateway: a small set of concrete
// backends behind one interface, so the rest of the runtime never knows
// whether vectors come from a local Ollama install, a hosted API, or an
// out-of-process plugin.
package embedder

import "context"

// Gateway produces vector embeddings for batches of text.
type Gateway interface {
	// EmbedBatch embeds one or more texts in a single call. Implementations
	// that only support single-text requests loop internally; callers
	// should always prefer batching several texts per call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector width this backend produces.
	Dimension() int

	// BackendName identifies the backend for logging and metrics.
	BackendName() string

	// Close releases any resources (subprocess handles, connections).
	Close() error
}
