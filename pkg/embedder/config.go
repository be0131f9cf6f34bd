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

import "fmt"

// BackendType selects which Gateway implementation to build.
type BackendType string

const (
	BackendOpenAI BackendType = "openai"
	BackendCohere BackendType = "cohere"
	BackendOllama BackendType = "ollama"
	BackendPlugin BackendType = "plugin"
)

// Config configures a single embedding backend.
type Config struct {
	Type BackendType `yaml:"type" json:"type"`

	APIKey    string `yaml:"api_key,omitempty" json:"-"`
	Host      string `yaml:"host,omitempty" json:"host,omitempty"`
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	Dimension int    `yaml:"dimension,omitempty" json:"dimension,omitempty"`

	Timeout    int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	BatchSize  int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// PluginPath is the executable path used when Type == BackendPlugin.
	PluginPath string `yaml:"plugin_path,omitempty" json:"plugin_path,omitempty"`
}

// SetDefaults applies backend-appropriate defaults in place.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = BackendOllama
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}

	switch c.Type {
	case BackendOpenAI:
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
		if c.Host == "" {
			c.Host = "https://api.openai.com/v1"
		}
		if c.Dimension == 0 {
			c.Dimension = openAIDimension(c.Model)
		}
		if c.BatchSize == 0 {
			c.BatchSize = 100
		}
	case BackendCohere:
		if c.Model == "" {
			c.Model = "embed-english-v3.0"
		}
		if c.Host == "" {
			c.Host = "https://api.cohere.ai/v1"
		}
		if c.Dimension == 0 {
			c.Dimension = cohereDimension(c.Model)
		}
		if c.BatchSize == 0 {
			c.BatchSize = 96
		}
	case BackendOllama:
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.Host == "" {
			c.Host = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	}
}

// Validate checks the configuration is complete enough to build a Gateway.
func (c *Config) Validate() error {
	switch c.Type {
	case BackendOpenAI, BackendCohere:
		if c.APIKey == "" {
			return fmt.Errorf("%s embedder requires an api_key", c.Type)
		}
	case BackendOllama:
		// no required fields; defaults to localhost
	case BackendPlugin:
		if c.PluginPath == "" {
			return fmt.Errorf("plugin embedder requires plugin_path")
		}
	case "":
		return fmt.Errorf("embedder type is required")
	default:
		return fmt.Errorf("unknown embedder type: %q", c.Type)
	}
	return nil
}

func openAIDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func cohereDimension(model string) int {
	switch model {
	case "embed-english-light-v3.0", "embed-multilingual-light-v3.0":
		return 384
	default:
		return 1024
	}
}
