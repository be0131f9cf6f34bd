// Package omnicore provides a skill routing and execution core: it indexes
// declarative skill bundles, embeds their descriptions into a vector store,
// and routes natural-language queries to the best-matching skill command —
// either in-process or dispatched to an isolated subprocess worker.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/omnicore/omnicore/cmd/omni@latest
//
// Lay out a skill bundle under skills_dir:
//
//	yaml
//	# skills/git/manifest.yaml
//	name: git
//	description: "Version control operations"
//	commands:
//	  commit:
//	    description: "Commit staged changes with a message"
//	    args:
//	      message: {type: string, required: true}
//
// Route a query against the indexed skills:
//
//	omni route "commit my changes" --json
//
// Run a resolved command directly:
//
//	omni run git.commit message="fix bug"
//
// Serve routing over HTTP, with live reindexing on bundle changes:
//
//	omni serve --config omni.yaml
//
// # Using as a Go library
//
// Import specific packages:
//
//	import (
//	    "github.com/omnicore/omnicore/pkg/router"
//	    "github.com/omnicore/omnicore/pkg/runner"
//	    "github.com/omnicore/omnicore/pkg/config"
//	)
//
// # Architecture
//
// Skill bundles on disk → Indexer (embed + upsert) → Vector Store → Hybrid
// Router (semantic + lexical scoring) → Skill Runner (in-process handler or
// pkg/swarm-dispatched subprocess) → OODA Executor (multi-step sessions with
// checkpointed state).
//
// # License
//
// AGPL-3.0 - See LICENSE.md for details.
package omnicore
