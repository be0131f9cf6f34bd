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
	"fmt"
	"strconv"
	"strings"
)

// validateArgs checks args against the object-type subset of JSON Schema
// declared on input_schema, per spec.md §4.H step 2: required properties
// must be present, unknown properties are rejected only when the schema
// sets additionalProperties=false, and obvious scalar coercions are
// applied in place (numeric strings -> numbers, "true"/"false" -> bool,
// a string matching an enum value after trimming and case-folding is
// replaced by that enum value's declared spelling).
//
// args is mutated in place with the coerced/normalized values and also
// returned, so callers can pass the coerced map straight into a handler or
// into the cache key.
func validateArgs(schema map[string]any, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = make(map[string]any)
	}
	if schema == nil {
		return args, nil
	}

	properties, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if name == "" {
				continue
			}
			if _, present := args[name]; !present {
				return nil, fmt.Errorf("%w: missing required property %q", ErrInvalidArgs, name)
			}
		}
	}

	if raw, explicit := schema["additionalProperties"]; explicit {
		if allow, ok := raw.(bool); ok && !allow {
			for name := range args {
				if properties == nil {
					break
				}
				if _, known := properties[name]; !known {
					return nil, fmt.Errorf("%w: unexpected property %q", ErrInvalidArgs, name)
				}
			}
		}
	}

	for name, propSchema := range properties {
		val, present := args[name]
		if !present {
			continue
		}
		propMap, _ := propSchema.(map[string]any)
		coerced, err := coerceScalar(name, propMap, val)
		if err != nil {
			return nil, err
		}
		args[name] = coerced
	}

	return args, nil
}

// coerceScalar applies the "obvious scalar coercion" rule from spec.md
// §4.H step 2: a string value is converted to the declared type when the
// conversion is unambiguous, and enum-valued strings are normalized to
// trimmed lower-case before the enum membership check.
func coerceScalar(name string, propSchema map[string]any, val any) (any, error) {
	if propSchema == nil {
		return val, nil
	}

	declaredType, _ := propSchema["type"].(string)
	str, isString := val.(string)

	switch declaredType {
	case "number", "integer":
		if isString {
			trimmed := strings.TrimSpace(str)
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				if declaredType == "integer" {
					return int64(f), nil
				}
				return f, nil
			}
			return nil, fmt.Errorf("%w: property %q: %q is not a valid %s", ErrInvalidArgs, name, str, declaredType)
		}
	case "boolean":
		if isString {
			switch strings.ToLower(strings.TrimSpace(str)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return nil, fmt.Errorf("%w: property %q: %q is not a valid boolean", ErrInvalidArgs, name, str)
		}
	case "string":
		if isString {
			if enum, ok := propSchema["enum"].([]any); ok && len(enum) > 0 {
				normalized := strings.ToLower(strings.TrimSpace(str))
				for _, e := range enum {
					if es, ok := e.(string); ok && strings.ToLower(es) == normalized {
						return es, nil
					}
				}
				return nil, fmt.Errorf("%w: property %q: %q is not one of the allowed values", ErrInvalidArgs, name, str)
			}
		}
	}

	return val, nil
}
