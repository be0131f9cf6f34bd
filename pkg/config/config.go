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

// Package config provides configuration loading and management for omni.
//
// omni is config-first: the vector store, embedding gateway, skill bundle
// directory, and every runtime subsystem are defined in one YAML document
// and the CLI builds them automatically.
//
// Example config:
//
//	version: "1"
//	name: my-node
//
//	skills:
//	  bundle_dir: ./skills
//
//	embedder:
//	  type: openai
//	  model: text-embedding-3-small
//	  api_key: ${OPENAI_API_KEY}
//
//	vector:
//	  type: chromem
//	  chromem:
//	    persist_path: .omni/vectors
//
//	server:
//	  port: 8080
package config

import (
	"fmt"
	"strings"

	"github.com/omnicore/omnicore/pkg/checkpoint"
	"github.com/omnicore/omnicore/pkg/embedder"
	"github.com/omnicore/omnicore/pkg/indexer"
	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/ooda"
	"github.com/omnicore/omnicore/pkg/router"
	"github.com/omnicore/omnicore/pkg/vector"
)

// Config is the root configuration structure: one section per SPEC_FULL.md
// component, composing each subsystem's own Config type rather than
// redeclaring its fields here.
type Config struct {
	// Version of the config schema (e.g., "1").
	Version string `yaml:"version,omitempty"`

	// Name of this node (for logging/display).
	Name string `yaml:"name,omitempty"`

	// Skills configures the Skill Registry's bundle directory.
	Skills SkillsConfig `yaml:"skills,omitempty"`

	// Embedder configures the Embedding Gateway.
	Embedder embedder.Config `yaml:"embedder,omitempty"`

	// Vector configures the Vector Store backend.
	Vector vector.ProviderConfig `yaml:"vector,omitempty"`

	// Router configures the Hybrid Router.
	Router router.Config `yaml:"router,omitempty"`

	// Indexer configures the background Indexer.
	Indexer indexer.Config `yaml:"indexer,omitempty"`

	// Runner configures the Skill Runner.
	Runner RunnerConfig `yaml:"runner,omitempty"`

	// Swarm configures the Subprocess Pool's worker processes, keyed by
	// name so multiple isolated skill bundles can each declare their own
	// worker command.
	Swarm map[string]SwarmWorkerConfig `yaml:"swarm,omitempty"`

	// Graph configures the Workflow Graph Executor's defaults.
	Graph GraphConfig `yaml:"graph,omitempty"`

	// OODA configures the OODA Executor.
	OODA ooda.Config `yaml:"ooda,omitempty"`

	// Checkpoint configures the Checkpoint Store.
	Checkpoint *checkpoint.Config `yaml:"checkpoint,omitempty"`

	// Server configures the serve subcommand's HTTP endpoint.
	Server ServerConfig `yaml:"server,omitempty"`

	// Logger configures logging behavior.
	Logger *LoggerConfig `yaml:"logger,omitempty"`

	// Observability configures tracing and metrics.
	Observability *observability.Config `yaml:"observability,omitempty"`
}

// SkillsConfig locates the Skill Registry's bundles on disk.
type SkillsConfig struct {
	// BundleDir is the directory the Indexer and Skill Registry scan for
	// skill bundles (each a manifest plus its commands).
	// Default: "./skills"
	BundleDir string `yaml:"bundle_dir,omitempty"`
}

// RunnerConfig configures the Skill Runner.
type RunnerConfig struct {
	// CallTimeoutSeconds bounds a single command execution.
	// Default: 60
	CallTimeoutSeconds int `yaml:"call_timeout_seconds,omitempty"`
}

// SwarmWorkerConfig configures one subprocess worker the Subprocess Pool
// may dispatch isolated commands to.
type SwarmWorkerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	ConnectTimeoutSeconds  int `yaml:"connect_timeout_seconds,omitempty"`
	ExecuteTimeoutSeconds  int `yaml:"execute_timeout_seconds,omitempty"`
	MaxRetries             int `yaml:"max_retries,omitempty"`
	RetryCooldownSeconds   int `yaml:"retry_cooldown_seconds,omitempty"`
	CircuitCooldownSeconds int `yaml:"circuit_cooldown_seconds,omitempty"`
}

// GraphConfig holds the graph section of the config file. Nothing in this
// module reads it when compiling a Workflow Graph: graph.Compile takes its
// step bound from CompileOptions.MaxSteps, whose own default is 1000.
type GraphConfig struct {
	// MaxSteps is the configured bound on execution rounds. Default: 50.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Skills.BundleDir == "" {
		c.Skills.BundleDir = "./skills"
	}
	c.Vector.SetDefaults()
	if c.Runner.CallTimeoutSeconds <= 0 {
		c.Runner.CallTimeoutSeconds = 60
	}
	if c.Graph.MaxSteps <= 0 {
		c.Graph.MaxSteps = 50
	}
	if c.Router.Table == "" {
		c.Router.Table = "skills"
	}
	if c.Router.MaxRetries <= 0 {
		c.Router.MaxRetries = 2
	}
	if c.Router.RetryStep <= 0 {
		c.Router.RetryStep = 0.1
	}
	if c.Indexer.SkillsDir == "" {
		c.Indexer.SkillsDir = c.Skills.BundleDir
	}

	for name, w := range c.Swarm {
		if w.ConnectTimeoutSeconds <= 0 {
			w.ConnectTimeoutSeconds = 10
		}
		if w.ExecuteTimeoutSeconds <= 0 {
			w.ExecuteTimeoutSeconds = 120
		}
		if w.MaxRetries <= 0 {
			w.MaxRetries = 2
		}
		if w.RetryCooldownSeconds <= 0 {
			w.RetryCooldownSeconds = 1
		}
		if w.CircuitCooldownSeconds <= 0 {
			w.CircuitCooldownSeconds = 30
		}
		c.Swarm[name] = w
	}

	c.Server.SetDefaults()

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()

	if c.Observability != nil {
		c.Observability.SetDefaults()
	}

	if c.Checkpoint != nil {
		c.Checkpoint.SetDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Skills.BundleDir == "" {
		errs = append(errs, "skills.bundle_dir is required")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server: %v", err))
	}

	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("observability: %v", err))
		}
	}

	if c.Checkpoint != nil {
		if err := c.Checkpoint.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("checkpoint: %v", err))
		}
	}

	for name, w := range c.Swarm {
		if w.Command == "" {
			errs = append(errs, fmt.Sprintf("swarm %q: command is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
