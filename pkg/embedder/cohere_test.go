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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCohereEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cohereEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.InputType != "search_document" {
			t.Errorf("expected input_type search_document, got %q", req.InputType)
		}
		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			embeddings[i] = []float32{float32(i)}
		}
		json.NewEncoder(w).Encode(cohereEmbedResponse{Embeddings: embeddings})
	}))
	defer server.Close()

	cfg := Config{Type: BackendCohere, APIKey: "k", Host: server.URL}
	cfg.SetDefaults()
	e := newCohereEmbedder(cfg)

	vectors, err := e.EmbedBatch(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("EmbedBatch returned error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if e.BackendName() != "cohere" {
		t.Errorf("expected backend name 'cohere', got %q", e.BackendName())
	}
}

func TestCohereEmbedder_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(cohereEmbedResponse{Message: "invalid model"})
	}))
	defer server.Close()

	cfg := Config{Type: BackendCohere, APIKey: "k", Host: server.URL, MaxRetries: 0}
	cfg.SetDefaults()
	cfg.MaxRetries = 0
	e := newCohereEmbedder(cfg)

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error for HTTP 400 response")
	}
}
