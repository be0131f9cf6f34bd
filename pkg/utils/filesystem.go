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

// Package utils provides small filesystem and path helpers shared across
// the runtime.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// OmniDirName is the per-project state directory: bundles, vector data,
// checkpoints and the default config file all live under it.
const OmniDirName = ".omni"

// EnsureOmniDir ensures the .omni directory exists at the given base path.
// If basePath is empty or ".", it creates ./.omni in the current directory.
// Otherwise, it creates {basePath}/.omni.
//
// Used by:
//   - Vector stores: {root}/.omni/vectors/
//   - Checkpoints: {root}/.omni/checkpoints/
//   - Skill bundle cache: {root}/.omni/skills/
func EnsureOmniDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = OmniDirName
	} else {
		dir = filepath.Join(basePath, OmniDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory at %q: %w", OmniDirName, dir, err)
	}

	return dir, nil
}
