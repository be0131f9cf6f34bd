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

import "testing"

func TestNewGateway_UnknownType(t *testing.T) {
	_, err := NewGateway(Config{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown embedder type")
	}
}

func TestNewGateway_Ollama(t *testing.T) {
	gw, err := NewGateway(Config{Type: BackendOllama})
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	if gw.BackendName() != "ollama" {
		t.Errorf("expected backend name 'ollama', got %q", gw.BackendName())
	}
	if gw.Dimension() != 768 {
		t.Errorf("expected default ollama dimension 768, got %d", gw.Dimension())
	}
	if err := gw.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()

	if err := r.Add("default", Config{Type: BackendOllama}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	gw, ok := r.Get("default")
	if !ok {
		t.Fatal("expected registered gateway to be found")
	}
	if gw.BackendName() != "ollama" {
		t.Errorf("expected ollama backend, got %q", gw.BackendName())
	}

	if err := r.Remove("default"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, ok := r.Get("default"); ok {
		t.Error("expected gateway to be gone after Remove")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("a", Config{Type: BackendOllama}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := r.Add("b", Config{Type: BackendOllama}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll returned error: %v", err)
	}
	if _, ok := r.Get("a"); ok {
		t.Error("expected registry to be empty after CloseAll")
	}
}
