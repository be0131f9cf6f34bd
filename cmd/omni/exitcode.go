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
	"errors"

	"github.com/omnicore/omnicore/pkg/runner"
)

// Exit codes per spec.md §6.
const (
	exitSuccess      = 0
	exitInvalidArgs  = 2
	exitUnknownCmd   = 3
	exitExecutionErr = 4
	exitCircuitOpen  = 5
	exitTimeout      = 124
)

// exitCodeFor maps a Runner/Router error to spec.md §6's exit code table.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, runner.ErrExecutionTimeout):
		return exitTimeout
	case errors.Is(err, runner.ErrCircuitOpen):
		return exitCircuitOpen
	case errors.Is(err, runner.ErrUnknownCommand):
		return exitUnknownCmd
	case errors.Is(err, runner.ErrInvalidArgs):
		return exitInvalidArgs
	default:
		return exitExecutionErr
	}
}
