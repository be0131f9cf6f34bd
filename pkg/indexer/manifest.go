// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package indexer implements the Live-Wire Indexer: Scan -> Embed ->
// Persist -> Invalidate, driven by an fsnotify watcher over a skills_dir.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/omnicore/omnicore/pkg/skill"
)

// manifestFile is a bundle directory's on-disk front matter. Go has no
// runtime equivalent of scanning a Python module for decorated functions,
// so unlike the original implementation's command discovery via
// signature+annotations, each command's full record — including
// input_schema — is declared directly in the manifest. Every
// manifest-declared command is necessarily an isolated handler
// (skill.NewIsolatedCommand): its implementation lives in the bundle's
// scripts/ directory and is executed through the Subprocess Pool
// (pkg/swarm), never loaded into the host process. In-process commands
// (skill.NewCommand) are reserved for Go code compiled into the binary
// itself and registered directly with a skill.Registry, bypassing this
// manifest path entirely.
type manifestFile struct {
	Name            string            `yaml:"name"`
	Version         string            `yaml:"version"`
	Description     string            `yaml:"description"`
	RoutingKeywords []string          `yaml:"routing_keywords"`
	Intents         []string          `yaml:"intents"`
	Authors         []string          `yaml:"authors"`
	Commands        []manifestCommand `yaml:"commands"`
}

type manifestCommand struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Category        string         `yaml:"category"`
	InputSchema     map[string]any `yaml:"input_schema"`
	CacheTTLSeconds int            `yaml:"cache_ttl_seconds"`
	Pure            bool           `yaml:"pure"`
	InjectRoot      bool           `yaml:"inject_root"`
	InjectSettings  []string       `yaml:"inject_settings"`
}

const manifestBasename = "manifest.yaml"

// parseBundle reads dir's manifest.yaml and builds the skill.Manifest plus
// one isolated skill.Command per declared command. A parsing error for a
// single command skips that command but does not abort the bundle, per
// spec.md §4.E's failure policy.
func parseBundle(dir string) (skill.Manifest, []*skill.Command, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestBasename))
	if err != nil {
		return skill.Manifest{}, nil, fmt.Errorf("read manifest in %q: %w", dir, err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return skill.Manifest{}, nil, fmt.Errorf("parse manifest in %q: %w", dir, err)
	}
	if mf.Name == "" || mf.Description == "" || mf.Version == "" {
		return skill.Manifest{}, nil, fmt.Errorf("manifest in %q missing required name/description/version", dir)
	}

	manifest := skill.Manifest{
		Name:            mf.Name,
		Version:         mf.Version,
		Description:     mf.Description,
		RoutingKeywords: mf.RoutingKeywords,
		Intents:         mf.Intents,
		Authors:         mf.Authors,
	}

	commands := make([]*skill.Command, 0, len(mf.Commands))
	for _, mc := range mf.Commands {
		if mc.Name == "" || mc.Description == "" {
			continue
		}
		cmd, err := skill.NewIsolatedCommand(manifest.Name, skill.CommandSpec{
			Name:            mc.Name,
			Description:     mc.Description,
			Category:        mc.Category,
			InputSchema:     mc.InputSchema,
			CacheTTLSeconds: mc.CacheTTLSeconds,
			Pure:            mc.Pure,
			InjectRoot:      mc.InjectRoot,
			InjectSettings:  mc.InjectSettings,
		})
		if err != nil {
			continue
		}

		info, err := os.Stat(filepath.Join(dir, "scripts"))
		if err == nil {
			cmd.ModTime = info.ModTime().Unix()
		}
		cmd.FilePath = filepath.Join(dir, "scripts")
		commands = append(commands, cmd)
	}

	return manifest, commands, nil
}

// listBundleDirs returns every immediate subdirectory of skillsDir that
// contains a manifest.yaml.
func listBundleDirs(skillsDir string) ([]string, error) {
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		return nil, fmt.Errorf("read skills_dir %q: %w", skillsDir, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(skillsDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, manifestBasename)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}
