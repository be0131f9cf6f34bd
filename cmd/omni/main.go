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

// Command omni is the CLI shell for the skill routing/execution core.
//
// Usage:
//
//	omni route "commit my changes" --json
//	omni run git.commit message="fix bug"
//	omni reindex --clear
//	omni serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/omnicore/omnicore/pkg/config"
)

// cliStdout is where command output (as opposed to log lines, which go to
// stderr via pkg/logger) is written. A var, not a constant os.Stdout
// reference, so tests can redirect it.
var cliStdout io.Writer = os.Stdout

// errInvalidArgs marks a CLI-level argument error, mapped to exit code 2.
var errInvalidArgs = errors.New("invalid arguments")

// CLI is the root command set: spec.md §6's route/run/reindex plus serve.
type CLI struct {
	Route   RouteCmd   `cmd:"" help:"Return ranked router hits for a query."`
	Run     RunCmd     `cmd:"" help:"Execute a skill command."`
	Reindex ReindexCmd `cmd:"" help:"Force a full Indexer pass."`
	Serve   ServeCmd   `cmd:"" help:"Run the /route HTTP endpoint."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)."`
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("omni"),
		kong.Description("Skill routing/execution core CLI."),
		kong.UsageOnError(),
	)

	err := parser.Run()
	if err == nil {
		os.Exit(exitSuccess)
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	if errors.Is(err, errInvalidArgs) {
		os.Exit(exitInvalidArgs)
	}
	os.Exit(exitCodeFor(err))
}

// bootstrap loads configuration (CLI flag > PRJ_CONFIG_HOME > ./omni.yaml),
// initializes logging, and builds the full app. Every subcommand goes
// through this single path so flag/env precedence stays consistent.
func bootstrap(ctx context.Context, cli *CLI) (*app, error) {
	verbose := os.Getenv("OMNI_CLI_VERBOSE") != ""

	// A provisional logger goes up first so LoadConfigFile's own slog lines
	// (provider selection, watch setup) aren't lost; it's replaced below once
	// cfg.Logger is available so the config file's logger section can apply.
	if err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, verbose, nil); err != nil {
		return nil, err
	}

	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}

	path := cli.Config
	if path == "" {
		path = configHome()
	}

	cfg, _, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	if err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, verbose, cfg.Logger); err != nil {
		return nil, err
	}

	return newApp(ctx, cfg)
}
