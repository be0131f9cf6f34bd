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
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RunCmd executes skill.command via the Skill Runner (spec.md §6).
type RunCmd struct {
	Target string   `arg:"" help:"Command identity, skill.command."`
	Args   []string `arg:"" optional:"" help:"Arguments as key=value pairs; values are parsed as JSON when possible, else kept as strings."`
	JSON   bool     `help:"Print the result as JSON."`
}

func (c *RunCmd) Run(cli *CLI) error {
	skillName, commandName, ok := strings.Cut(c.Target, ".")
	if !ok {
		return fmt.Errorf("%w: target must be skill.command, got %q", errInvalidArgs, c.Target)
	}

	args, err := parseArgs(c.Args)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}

	a, err := bootstrap(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.runner.Run(context.Background(), skillName, commandName, args)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(cliStdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for k, v := range result {
		fmt.Fprintf(cliStdout, "%s: %v\n", k, v)
	}
	return nil
}

// parseArgs turns ["key=value", ...] into a map, decoding each value as
// JSON when it parses cleanly (so `count=3`, `ok=true`, `tags=["a","b"]`
// all come through typed) and falling back to the raw string otherwise.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not in key=value form", pair)
		}
		args[key] = parseArgValue(value)
	}
	return args, nil
}

func parseArgValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
