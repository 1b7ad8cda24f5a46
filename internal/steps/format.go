package steps

import (
	"context"
	"strings"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerFormat(r *registry.Registry) {
	r.MustRegister("format.prefix", registry.Schema{
		Description: "Add a prefix to a column's values",
		Required: map[string]registry.ValueType{
			"input": registry.TypeAny,
			"value": registry.TypeString,
		},
		Optional:   map[string]registry.ValueType{"output": registry.TypeAny},
		RowCapable: true,
	}, func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		return newAffix(cfg, "prefix")
	})

	r.MustRegister("format.suffix", registry.Schema{
		Description: "Add a suffix to a column's values",
		Required: map[string]registry.ValueType{
			"input": registry.TypeAny,
			"value": registry.TypeString,
		},
		Optional:   map[string]registry.ValueType{"output": registry.TypeAny},
		RowCapable: true,
	}, func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		return newAffix(cfg, "suffix")
	})

	r.MustRegister("format.trim", registry.Schema{
		Description: "Remove excess whitespace at the start and end of text",
		Required:    map[string]registry.ValueType{"input": registry.TypeAny},
		Optional:    map[string]registry.ValueType{"output": registry.TypeAny},
		RowCapable:  true,
	}, func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		input, output, err := inputOutput(cfg)
		if err != nil {
			return nil, err
		}
		return &textStep{input: input, output: output, transform: strings.TrimSpace}, nil
	})
}

func newAffix(cfg map[string]interface{}, mode string) (registry.Step, error) {
	input, output, err := inputOutput(cfg)
	if err != nil {
		return nil, err
	}
	value, _ := cfg["value"].(string)
	transform := func(s string) string { return value + s }
	if mode == "suffix" {
		transform = func(s string) string { return s + value }
	}
	return &textStep{input: input, output: output, transform: transform}, nil
}

// textStep applies a string transformation across the selected
// columns; shared by the format.* kinds.
type textStep struct {
	input     []string
	output    []string
	transform func(string) string
}

func (s *textStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	input, err := ds.ExpandColumns(s.input)
	if err != nil {
		return nil, err
	}
	output := s.output
	if len(output) == 0 {
		output = input
	}
	for i, col := range input {
		values, err := ds.Column(col)
		if err != nil {
			return nil, err
		}
		transformed := make([]interface{}, len(values))
		for r, v := range values {
			transformed[r] = s.transform(asString(v))
		}
		if err := writeColumn(ds, output[i], transformed); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (s *textStep) ApplyRow(ctx context.Context, row map[string]interface{}) (map[string]interface{}, error) {
	output := s.output
	if len(output) == 0 {
		output = s.input
	}
	for i, col := range s.input {
		row[output[i]] = s.transform(asString(row[col]))
	}
	return row, nil
}
