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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/omnicore/omnicore/pkg/config/provider"
)

func TestLoader_File_Load(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configYAML := `
version: "1"
name: "test-node"
skills:
  bundle_dir: ./skills
vector:
  type: chromem
router:
  table: skills
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, _, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.Name != "test-node" {
		t.Errorf("Name = %q, want %q", cfg.Name, "test-node")
	}
	if cfg.Skills.BundleDir != "./skills" {
		t.Errorf("Skills.BundleDir = %q, want %q", cfg.Skills.BundleDir, "./skills")
	}
	if cfg.Router.Table != "skills" {
		t.Errorf("Router.Table = %q, want %q", cfg.Router.Table, "skills")
	}
	// Defaults applied post-decode.
	if cfg.Runner.CallTimeoutSeconds != 60 {
		t.Errorf("Runner.CallTimeoutSeconds = %d, want 60", cfg.Runner.CallTimeoutSeconds)
	}
	if cfg.Graph.MaxSteps != 50 {
		t.Errorf("Graph.MaxSteps = %d, want 50", cfg.Graph.MaxSteps)
	}
}

func TestLoader_File_EnvVarExpansion(t *testing.T) {
	t.Setenv("OMNI_TEST_BUNDLE_DIR", "/srv/skills")

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")
	configYAML := `
skills:
  bundle_dir: ${OMNI_TEST_BUNDLE_DIR}
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, _, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Skills.BundleDir != "/srv/skills" {
		t.Errorf("Skills.BundleDir = %q, want %q", cfg.Skills.BundleDir, "/srv/skills")
	}
}

func TestLoader_File_EnvVarDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")
	configYAML := `
name: "${OMNI_TEST_UNSET_NAME:-fallback-name}"
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, _, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Name != "fallback-name" {
		t.Errorf("Name = %q, want %q", cfg.Name, "fallback-name")
	}
}

func TestLoader_File_MissingBundleDirFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")
	// An explicit empty bundle_dir would normally be overwritten by
	// SetDefaults, so exercise Validate directly against a zero-value Config
	// instead of relying on file parsing to produce an empty string.
	cfg := &Config{}
	cfg.Skills.BundleDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing skills.bundle_dir")
	}
	_ = configFile
}

func TestNewLoader_WithOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")
	if err := os.WriteFile(configFile, []byte("name: v1\nskills:\n  bundle_dir: ./skills\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := provider.NewFileProvider(configFile)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	defer p.Close()

	var reloaded *Config
	loader := NewLoader(p, WithOnChange(func(cfg *Config) {
		reloaded = cfg
	}))

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "v1" {
		t.Fatalf("Name = %q, want v1", cfg.Name)
	}
	if reloaded != nil {
		t.Fatalf("onChange should not fire from Load directly")
	}
}
