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

package skill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// NewCommand builds an in-process Command from a typed Go function, deriving
// Spec.InputSchema from Args's struct tags rather than requiring the
// manifest author to hand-write JSON Schema. Args plays the role spec.md
// §4.E assigns to "signature+annotations": internal parameters (context,
// receivers) never appear because they are not part of Args at all, the Go
// equivalent of the spec's exclusion of self/cls/ctx/root-injection params
// from properties/required.
func NewCommand[Args any](skillName string, spec CommandSpec, fn func(context.Context, Args) (map[string]any, error)) (*Command, error) {
	if skillName == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("command name is required")
	}
	if spec.Description == "" {
		return nil, fmt.Errorf("command description is required")
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("generate input schema for %s.%s: %w", skillName, spec.Name, err)
	}
	spec.InputSchema = schema

	return &Command{
		Skill: skillName,
		Spec:  spec,
		Handler: Handler{
			Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				var typedArgs Args
				if err := mapToStruct(args, &typedArgs); err != nil {
					return nil, fmt.Errorf("invalid arguments for %s.%s: %w", skillName, spec.Name, err)
				}
				return fn(ctx, typedArgs)
			},
		},
	}, nil
}

// NewIsolatedCommand builds a Command for an isolated handler: spec.md
// §4.D's second handler flavor, dispatched through the Subprocess Pool
// (pkg/swarm) rather than called directly. InputSchema is taken as given
// since there is no Go function signature to reflect over — the subprocess
// owns its own argument contract.
func NewIsolatedCommand(skillName string, spec CommandSpec) (*Command, error) {
	if skillName == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("command name is required")
	}
	spec.Isolated = true

	return &Command{
		Skill:   skillName,
		Spec:    spec,
		Handler: Handler{Isolated: true},
	}, nil
}

// generateSchema derives a JSON Schema object (type=object, properties,
// required) from Args's struct tags, grounded on the teacher's
// functiontool.generateSchema.
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, err
	}
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	if schemaMap["type"] != "object" {
		return schemaMap, nil
	}

	result := map[string]any{
		"type":       "object",
		"properties": schemaMap["properties"],
	}
	if required := schemaMap["required"]; required != nil {
		result["required"] = required
	}
	if addProps, ok := schemaMap["additionalProperties"]; ok {
		result["additionalProperties"] = addProps
	}
	return result, nil
}

// mapToStruct converts a map[string]any to a typed struct via a JSON
// marshal/unmarshal round trip, grounded on the teacher's
// functiontool.mapToStruct.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return nil
}
