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

package main

import (
	"fmt"
	"os"

	cfgpkg "github.com/omnicore/omnicore/pkg/config"
	"github.com/omnicore/omnicore/pkg/logger"
)

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLogger wires up slog per pkg/config/logger.go's documented precedence:
// CLI flags > environment variables > config file > defaults. verbose forces
// debug level below everything but an explicit CLI/env level.
func initLogger(cliLevel, cliFile, cliFormat string, verbose bool, cfg *cfgpkg.LoggerConfig) error {
	level := cliLevel
	if level == "" {
		level = os.Getenv(logLevelEnvVar)
	}
	if level == "" && verbose {
		level = "debug"
	}
	if level == "" && cfg != nil {
		level = cfg.Level
	}
	if level == "" {
		level = "info"
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	file := cliFile
	if file == "" {
		file = os.Getenv(logFileEnvVar)
	}
	if file == "" && cfg != nil {
		file = cfg.File
	}

	format := cliFormat
	if format == "" {
		format = os.Getenv(logFormatEnvVar)
	}
	if format == "" && cfg != nil {
		format = cfg.Format
	}
	if format == "" {
		format = "simple"
	}

	output := os.Stderr
	if file != "" {
		f, _, err := logger.OpenLogFile(file)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = f
	}

	logger.Init(parsed, output, format)
	return nil
}
