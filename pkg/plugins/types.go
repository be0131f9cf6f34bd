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

// Package plugins hosts the go-plugin boundary used to load an external
// embedding backend as a subprocess, over go-plugin's net/rpc transport.
// This is the only plugin kind carried forward: LLM, database and
// document-parser plugin types existed in the teacher but have no place
// in this runtime's component set.
package plugins

import (
	"context"
	"fmt"
)

// Status is the lifecycle state of a loaded plugin.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
	StatusShutdown Status = "shutdown"
)

// Manifest describes a plugin executable.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config points at a plugin executable and its initialization parameters.
type Config struct {
	Name     string            `yaml:"name" json:"name"`
	Path     string            `yaml:"path" json:"path"`
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Settings map[string]string `yaml:"settings,omitempty" json:"settings,omitempty"`
	Manifest *Manifest         `yaml:"-" json:"-"`
}

// Plugin is the host-side handle to a loaded subprocess plugin.
type Plugin interface {
	Initialize(ctx context.Context, config map[string]string) error
	Shutdown(ctx context.Context) error
	Status() Status
	Health(ctx context.Context) error
}

// Error wraps a plugin operation failure with the plugin and operation name.
type Error struct {
	PluginName string
	Operation  string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("plugin %q: %s: %v", e.PluginName, e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrPluginNotFound  = fmt.Errorf("plugin not found")
	ErrPluginNotLoaded = fmt.Errorf("plugin not loaded")
	ErrPluginCrashed   = fmt.Errorf("plugin crashed")
)
