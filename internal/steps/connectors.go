package steps

import (
	"fmt"

	"github.com/skillet-data/skillet/internal/registry"
)

// Connector and combinator kinds register schemas so the validator
// and the generated JSON Schema cover the read and write sections.
// Their execution lives in the engine's read and write phases; the
// factory below rejects any attempt to run one as a wrangle step.
func registerConnectorKinds(r *registry.Registry) {
	r.MustRegister("file", registry.Schema{
		Description: "Read or write a local file (csv, json, jsonl; gz/bz2/xz compressed)",
		Required:    map[string]registry.ValueType{"name": registry.TypeString},
		Optional: map[string]registry.ValueType{
			"format":  registry.TypeString,
			"columns": registry.TypeAny,
		},
	}, sectionOnly("file"))

	r.MustRegister("test", registry.Schema{
		Description: "Generate rows of fixed values for testing recipes",
		Required: map[string]registry.ValueType{
			"rows":   registry.TypeInt,
			"values": registry.TypeMap,
		},
	}, sectionOnly("test"))

	r.MustRegister("postgres", registry.Schema{
		Description: "Read query results from or write a table to Postgres",
		Optional: map[string]registry.ValueType{
			"query":   registry.TypeString,
			"table":   registry.TypeString,
			"columns": registry.TypeAny,
		},
	}, sectionOnly("postgres"))

	r.MustRegister("objectstore", registry.Schema{
		Description: "Read or write an object in S3-compatible storage",
		Required:    map[string]registry.ValueType{"key": registry.TypeString},
		Optional: map[string]registry.ValueType{
			"bucket":  registry.TypeString,
			"format":  registry.TypeString,
			"columns": registry.TypeAny,
		},
	}, sectionOnly("objectstore"))

	r.MustRegister("inference", registry.Schema{
		Description: "Train a hosted model from the dataset",
		Required:    map[string]registry.ValueType{"model": registry.TypeString},
		Optional:    map[string]registry.ValueType{"columns": registry.TypeAny},
	}, sectionOnly("inference"))

	// Read combinators: each source is itself a read step, recursed
	// into by the engine's read phase.
	r.MustRegister("union", registry.Schema{
		Description: "Read several sources and append their rows",
		Required:    map[string]registry.ValueType{"sources": registry.TypeList},
		NestedSteps: []string{"sources"},
	}, sectionOnly("union"))

	r.MustRegister("concatenate", registry.Schema{
		Description: "Read several sources and place their columns side by side",
		Required:    map[string]registry.ValueType{"sources": registry.TypeList},
		NestedSteps: []string{"sources"},
	}, sectionOnly("concatenate"))

	r.MustRegister("join", registry.Schema{
		Description: "Read two sources and inner-join them on key columns",
		Required: map[string]registry.ValueType{
			"sources": registry.TypeList,
			"on":      registry.TypeAny,
		},
		NestedSteps: []string{"sources"},
	}, sectionOnly("join"))
}

func sectionOnly(kind string) registry.Factory {
	return func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		return nil, fmt.Errorf("%q is a read/write kind, not a wrangle", kind)
	}
}
