// Package schema checks a parsed recipe against the step registry's
// published schemas and renders those schemas as a JSON Schema
// artifact. Validation is a pure function of (recipe, schemas) and
// runs before any connector is opened.
package schema

import (
	"fmt"

	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/recipe"
	"github.com/skillet-data/skillet/internal/registry"
)

// Per-step keys the executor owns; valid on any step without
// appearing in a kind's schema.
const onErrorKey = "on_error"

var onErrorValues = map[string]bool{"fail": true, "skip_row": true, "skip_step": true}

// Validate checks every step of every section and returns the full
// violation list. It never short-circuits: a user sees all errors in
// one pass, in declaration order. An empty slice means valid.
func Validate(r *recipe.Recipe, kinds registry.Resolver) []errs.Violation {
	var out []errs.Violation
	out = append(out, validateSteps("read", r.Read, kinds)...)
	out = append(out, validateSteps("wrangles", r.Wrangles, kinds)...)
	out = append(out, validateSteps("write", r.Write, kinds)...)
	return out
}

func validateSteps(section string, steps []recipe.Step, kinds registry.Resolver) []errs.Violation {
	var out []errs.Violation
	for i, step := range steps {
		out = append(out, validateStep(section, i, step, kinds)...)
	}
	return out
}

func validateStep(section string, index int, step recipe.Step, kinds registry.Resolver) []errs.Violation {
	entry, err := kinds.Resolve(step.Kind)
	if err != nil {
		return []errs.Violation{{
			Section: section, Index: index, Kind: step.Kind,
			Rule:    "unknown_kind",
			Message: fmt.Sprintf("kind %q is not registered", step.Kind),
		}}
	}

	var out []errs.Violation
	schema := entry.Schema

	nested := make(map[string]bool, len(schema.NestedSteps))
	for _, k := range schema.NestedSteps {
		nested[k] = true
	}

	// Required keys present
	for _, key := range sortedKeys(schema.Required) {
		if _, ok := step.Config[key]; !ok {
			out = append(out, errs.Violation{
				Section: section, Index: index, Kind: step.Kind,
				Rule:    "missing_key",
				Message: fmt.Sprintf("missing required key %q", key),
			})
		}
	}

	// Known keys carry the declared type; unknown keys are rejected
	// unless the kind declares an open schema
	for _, key := range sortedConfigKeys(step.Config) {
		value := step.Config[key]
		if key == onErrorKey {
			out = append(out, validateOnError(section, index, step.Kind, schema, value)...)
			continue
		}
		vt, known := schema.Required[key]
		if !known {
			vt, known = schema.Optional[key]
		}
		if !known {
			if !schema.Open {
				out = append(out, errs.Violation{
					Section: section, Index: index, Kind: step.Kind,
					Rule:    "unknown_key",
					Message: fmt.Sprintf("unknown key %q", key),
				})
			}
			continue
		}
		if nested[key] {
			out = append(out, validateNested(section, index, step.Kind, key, value, kinds)...)
			continue
		}
		if !valueMatches(vt, value) {
			out = append(out, errs.Violation{
				Section: section, Index: index, Kind: step.Kind,
				Rule:    "wrong_type",
				Message: fmt.Sprintf("key %q expects %s, got %T", key, vt, value),
			})
		}
	}
	return out
}

func validateOnError(section string, index int, kind string, schema registry.Schema, value interface{}) []errs.Violation {
	// Read failures are fatal to the run; no policy can soften them.
	if section == "read" {
		return []errs.Violation{{
			Section: section, Index: index, Kind: kind,
			Rule:    "unknown_key",
			Message: "read steps do not support on_error",
		}}
	}
	s, ok := value.(string)
	if !ok || !onErrorValues[s] {
		return []errs.Violation{{
			Section: section, Index: index, Kind: kind,
			Rule:    "wrong_type",
			Message: fmt.Sprintf("on_error must be fail, skip_row or skip_step (got %v)", value),
		}}
	}
	if s == "skip_row" && !schema.RowCapable {
		return []errs.Violation{{
			Section: section, Index: index, Kind: kind,
			Rule:    "wrong_type",
			Message: fmt.Sprintf("kind %q does not support on_error: skip_row", kind),
		}}
	}
	return nil
}

func validateNested(section string, index int, kind, key string, value interface{}, kinds registry.Resolver) []errs.Violation {
	steps, err := recipe.ConfigSteps(value)
	if err != nil {
		return []errs.Violation{{
			Section: section, Index: index, Kind: kind,
			Rule:    "wrong_type",
			Message: fmt.Sprintf("key %q must be a step list: %v", key, err),
		}}
	}
	var out []errs.Violation
	for _, v := range validateSteps(section, steps, kinds) {
		// Nested violations keep the parent's position so the user
		// can find the offending group
		v.Message = fmt.Sprintf("%s[%d]: %s", key, v.Index, v.Message)
		v.Index = index
		out = append(out, v)
	}
	return out
}

// valueMatches reports whether a YAML-decoded value satisfies the
// declared type.
func valueMatches(vt registry.ValueType, value interface{}) bool {
	switch vt {
	case registry.TypeAny:
		return true
	case registry.TypeString:
		_, ok := value.(string)
		return ok
	case registry.TypeInt:
		switch value.(type) {
		case int, int64:
			return true
		}
		return false
	case registry.TypeNumber:
		switch value.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case registry.TypeBool:
		_, ok := value.(bool)
		return ok
	case registry.TypeList:
		_, ok := value.([]interface{})
		return ok
	case registry.TypeMap:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}
