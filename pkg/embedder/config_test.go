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

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Config{Type: BackendOpenAI}
	cfg.SetDefaults()

	if cfg.Model != "text-embedding-3-small" {
		t.Errorf("expected default openai model, got %q", cfg.Model)
	}
	if cfg.Dimension != 1536 {
		t.Errorf("expected default openai dimension 1536, got %d", cfg.Dimension)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("expected default openai batch size 100, got %d", cfg.BatchSize)
	}
}

func TestConfig_SetDefaults_OllamaFallback(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.Type != BackendOllama {
		t.Errorf("expected default backend type ollama, got %q", cfg.Type)
	}
	if cfg.Host != "http://localhost:11434" {
		t.Errorf("expected default ollama host, got %q", cfg.Host)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai without key", Config{Type: BackendOpenAI}, true},
		{"openai with key", Config{Type: BackendOpenAI, APIKey: "k"}, false},
		{"plugin without path", Config{Type: BackendPlugin}, true},
		{"plugin with path", Config{Type: BackendPlugin, PluginPath: "/bin/plugin"}, false},
		{"ollama needs nothing", Config{Type: BackendOllama}, false},
		{"unknown type", Config{Type: "bogus"}, true},
		{"empty type", Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCohereDimension(t *testing.T) {
	if d := cohereDimension("embed-english-light-v3.0"); d != 384 {
		t.Errorf("expected light variant dimension 384, got %d", d)
	}
	if d := cohereDimension("embed-english-v3.0"); d != 1024 {
		t.Errorf("expected default cohere dimension 1024, got %d", d)
	}
}
