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

package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omnicore/omnicore/pkg/observability"
	"github.com/omnicore/omnicore/pkg/skill"
	"github.com/omnicore/omnicore/pkg/swarm"
)

// DefaultCallTimeout is the per-call execution bound from spec.md §4.H
// step 5.
const DefaultCallTimeout = 60 * time.Second

// Config configures a Runner.
type Config struct {
	Registry *skill.Registry

	// Swarm dispatches isolated commands. May be nil if no skill in the
	// registry ever declares isolated: true.
	Swarm *swarm.Manager

	// CallTimeout bounds a single command execution; default 60s.
	CallTimeout time.Duration
}

// Runner is the Skill Runner (component H): resolve -> validate -> cache
// -> execute, choosing the in-process or Subprocess Pool path per
// command, grounded on mcptoolset.go's resolve-then-execute flow.
type Runner struct {
	registry    *skill.Registry
	swarm       *swarm.Manager
	callTimeout time.Duration
	cache       *resultCache
	obs         *observability.Manager
}

// SetObservability attaches obs to r, wrapping Run in an OTel span tagged
// with the dispatched skill.command. Safe to call with a nil obs.
func (r *Runner) SetObservability(obs *observability.Manager) {
	r.obs = obs
}

// New builds a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("runner: registry is required")
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Runner{
		registry:    cfg.Registry,
		swarm:       cfg.Swarm,
		callTimeout: timeout,
		cache:       newResultCache(),
	}, nil
}

// Run executes skillName.commandName against args, following spec.md
// §4.H's resolution order: resolve, validate, cache lookup, dispatch,
// timeout, cache store.
func (r *Runner) Run(ctx context.Context, skillName, commandName string, args map[string]any) (map[string]any, error) {
	ctx, span := r.obs.Tracer().Start(ctx, observability.SpanRunnerRun,
		trace.WithAttributes(attribute.String(observability.AttrToolName, skillName+"."+commandName)))
	defer span.End()

	record, handler, ok := r.registry.GetCommand(skillName, commandName)
	if !ok {
		err := fmt.Errorf("%w: %s.%s", ErrUnknownCommand, skillName, commandName)
		r.obs.Tracer().RecordError(span, err)
		return nil, err
	}

	validated, err := validateArgs(record.InputSchema, args)
	if err != nil {
		r.obs.Tracer().RecordError(span, err)
		return nil, err
	}

	cacheable := record.CacheTTLSeconds > 0
	var key string
	if cacheable {
		key, err = cacheKey(skillName, commandName, validated)
		if err != nil {
			return nil, err
		}
		if cached, hit := r.cache.get(key, record.ModTime); hit {
			return cached, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	result, err := r.dispatch(callCtx, record, handler, validated)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s.%s", ErrExecutionTimeout, skillName, commandName)
		}
		return nil, err
	}

	if cacheable {
		r.cache.put(key, record.ModTime, time.Duration(record.CacheTTLSeconds)*time.Second, result)
	}
	return result, nil
}

// dispatch chooses the in-process or Subprocess Pool execution path per
// spec.md §4.H step 4: isolated commands (no importable in-process Fn)
// always route through pkg/swarm, keyed by the owning skill's name — one
// long-lived worker subprocess per skill bundle that declares any
// isolated command.
func (r *Runner) dispatch(ctx context.Context, record skill.ToolRecord, handler skill.Handler, args map[string]any) (map[string]any, error) {
	if !handler.Isolated {
		if handler.Fn == nil {
			return nil, fmt.Errorf("%w: %s.%s has no in-process handler", ErrUnknownCommand, record.SkillName, record.CommandName)
		}
		result, err := handler.Fn(ctx, args)
		if err != nil {
			return nil, &HandlerError{Err: err}
		}
		return result, nil
	}

	if r.swarm == nil {
		return nil, fmt.Errorf("%w: %s.%s requires isolation but no swarm is configured", ErrWorkerUnreachable, record.SkillName, record.CommandName)
	}

	result, err := r.swarm.CallTool(ctx, record.SkillName, record.CommandName, args)
	if err != nil {
		switch {
		case errors.Is(err, swarm.ErrCircuitOpen):
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, err)
		case errors.Is(err, swarm.ErrUnreachable):
			return nil, fmt.Errorf("%w: %s", ErrWorkerUnreachable, err)
		default:
			var handlerErr *swarm.HandlerError
			if errors.As(err, &handlerErr) {
				return nil, &HandlerError{Err: handlerErr}
			}
			return nil, err
		}
	}
	return result, nil
}
