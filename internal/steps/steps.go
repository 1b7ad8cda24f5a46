// Package steps implements the built-in wrangle kinds and registers
// every built-in step and connector kind into a registry. The
// engine's contracts (dataset threading, error isolation, ordering)
// live in internal/engine; this package only supplies kinds.
package steps

import (
	"fmt"

	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

// RegisterBuiltins registers every built-in kind. It is called once
// at process initialization; a duplicate here is a programming error
// and panics via MustRegister.
func RegisterBuiltins(r *registry.Registry) {
	registerConnectorKinds(r)
	registerConvert(r)
	registerColumns(r)
	registerFilter(r)
	registerFormat(r)
	registerSplit(r)
	registerGroups(r)
	registerClassify(r)
	registerLookup(r)
}

// Defaults returns a registry with all built-ins registered.
func Defaults() *registry.Registry {
	r := registry.New()
	RegisterBuiltins(r)
	return r
}

// stringOrList reads a config value that may be a single column name
// or a list of names.
func stringOrList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list element %d is %T, want string", errs.ErrConfigInvalid, i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want string or list, got %T", errs.ErrConfigInvalid, v)
	}
}

// inputOutput reads the common input/output column configuration.
// When output is omitted the transformation happens in place.
func inputOutput(cfg map[string]interface{}) (input, output []string, err error) {
	input, err = stringOrList(cfg["input"])
	if err != nil {
		return nil, nil, err
	}
	if len(input) == 0 {
		return nil, nil, fmt.Errorf("%w: missing 'input'", errs.ErrConfigInvalid)
	}
	output, err = stringOrList(cfg["output"])
	if err != nil {
		return nil, nil, err
	}
	if len(output) > 0 && len(output) != len(input) {
		return nil, nil, fmt.Errorf("%w: %d input column(s) but %d output column(s)", errs.ErrConfigInvalid, len(input), len(output))
	}
	return input, output, nil
}

// asString renders a cell value for text transformations. nil stays
// empty.
func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
