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

	"github.com/omnicore/omnicore/pkg/router"
)

// RouteCmd returns ranked router hits for a query (spec.md §6).
type RouteCmd struct {
	Query string `arg:"" help:"Query to route."`
	Local bool   `help:"Reserved for a local-only routing mode; currently a no-op (the Router has no remote leg)."`
	JSON  bool   `help:"Print results as JSON."`
	Limit int    `help:"Maximum results." default:"10"`
}

func (c *RouteCmd) Run(cli *CLI) error {
	a, err := bootstrap(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.router.Route(context.Background(), c.Query, router.Options{Limit: c.Limit})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(cliStdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(cliStdout, "no matching skills")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(cliStdout, "%s.%s\tscore=%.4f\tconfidence=%s\n", r.SkillName, r.CommandName, r.FinalScore, r.Confidence)
	}
	return nil
}
