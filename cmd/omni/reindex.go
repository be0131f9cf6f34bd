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
	"fmt"
)

// ReindexCmd forces a full Indexer pass over skills_dir (spec.md §6).
type ReindexCmd struct {
	Clear bool `help:"Drop the skills table before reindexing."`
}

func (c *ReindexCmd) Run(cli *CLI) error {
	a, err := bootstrap(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if c.Clear {
		if err := a.store.DropTable(ctx, "skills"); err != nil {
			return fmt.Errorf("drop skills table: %w", err)
		}
	}

	// bootstrap already ran one Scan as part of newApp; --clear requires a
	// second pass against the now-empty table, and a plain reindex is
	// idempotent to run twice, so always Scan again here for a fresh result
	// independent of what newApp already did.
	if err := a.indexer.Scan(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	fmt.Fprintln(cliStdout, "reindex complete")
	return nil
}
