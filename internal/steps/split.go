package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerSplit(r *registry.Registry) {
	r.MustRegister("split.text", registry.Schema{
		Description: "Split a text column on a delimiter into a list or into columns",
		Required:    map[string]registry.ValueType{"input": registry.TypeString},
		Optional: map[string]registry.ValueType{
			"char":   registry.TypeString,
			"output": registry.TypeAny,
		},
	}, newSplitText)

	r.MustRegister("merge.concat", registry.Schema{
		Description: "Concatenate multiple columns into one",
		Required: map[string]registry.ValueType{
			"input":  registry.TypeList,
			"output": registry.TypeString,
		},
		Optional:   map[string]registry.ValueType{"char": registry.TypeString},
		RowCapable: true,
	}, newMergeConcat)
}

func newSplitText(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, _ := cfg["input"].(string)
	char, ok := cfg["char"].(string)
	if !ok {
		char = ","
	}
	output, err := stringOrList(cfg["output"])
	if err != nil {
		return nil, err
	}
	return &splitStep{input: input, char: char, output: output}, nil
}

// splitStep splits text. With no output it replaces the input column
// with a list value per row; with output columns it spreads parts
// across them, padding short splits with empty strings. A single
// output containing '*' generates numbered columns ("part_*" →
// part_1, part_2, ...).
type splitStep struct {
	input  string
	char   string
	output []string
}

func (s *splitStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	values, err := ds.Column(s.input)
	if err != nil {
		return nil, err
	}
	parts := make([][]string, len(values))
	width := 0
	for r, v := range values {
		parts[r] = strings.Split(asString(v), s.char)
		if len(parts[r]) > width {
			width = len(parts[r])
		}
	}

	// No output: the input column holds the list itself
	if len(s.output) == 0 {
		for r := range parts {
			list := make([]interface{}, len(parts[r]))
			for i, p := range parts[r] {
				list[i] = p
			}
			if err := ds.SetValue(r, s.input, list); err != nil {
				return nil, err
			}
		}
		return ds, nil
	}

	output := s.output
	if len(output) == 1 && strings.Contains(output[0], "*") {
		output = make([]string, width)
		for i := range output {
			output[i] = strings.Replace(s.output[0], "*", fmt.Sprintf("%d", i+1), 1)
		}
	}
	for i, col := range output {
		column := make([]interface{}, len(parts))
		for r := range parts {
			if i < len(parts[r]) {
				column[r] = parts[r][i]
			} else {
				column[r] = ""
			}
		}
		if err := writeColumn(ds, col, column); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func newMergeConcat(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, err := stringOrList(cfg["input"])
	if err != nil {
		return nil, err
	}
	if len(input) < 2 {
		return nil, fmt.Errorf("%w: merge.concat requires at least two input columns", errs.ErrConfigInvalid)
	}
	output, _ := cfg["output"].(string)
	char, ok := cfg["char"].(string)
	if !ok {
		char = " "
	}
	return &concatStep{input: input, output: output, char: char}, nil
}

type concatStep struct {
	input  []string
	output string
	char   string
}

func (s *concatStep) merged(get func(col string) (interface{}, error)) (string, error) {
	parts := make([]string, len(s.input))
	for i, col := range s.input {
		v, err := get(col)
		if err != nil {
			return "", err
		}
		parts[i] = asString(v)
	}
	return strings.Join(parts, s.char), nil
}

func (s *concatStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	input, err := ds.ExpandColumns(s.input)
	if err != nil {
		return nil, err
	}
	merged := make([]interface{}, ds.NumRows())
	for r := 0; r < ds.NumRows(); r++ {
		parts := make([]string, len(input))
		for i, col := range input {
			v, err := ds.Value(r, col)
			if err != nil {
				return nil, err
			}
			parts[i] = asString(v)
		}
		merged[r] = strings.Join(parts, s.char)
	}
	if err := writeColumn(ds, s.output, merged); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *concatStep) ApplyRow(ctx context.Context, row map[string]interface{}) (map[string]interface{}, error) {
	v, err := s.merged(func(col string) (interface{}, error) {
		val, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, col)
		}
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	row[s.output] = v
	return row, nil
}
