package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerConvert(r *registry.Registry) {
	r.MustRegister("uppercase", registry.Schema{
		Description: "Convert a column's text to upper case",
		Required:    map[string]registry.ValueType{"column": registry.TypeString},
		RowCapable:  true,
	}, func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		col, _ := cfg["column"].(string)
		return &caseStep{input: []string{col}, mode: "upper"}, nil
	})

	r.MustRegister("lowercase", registry.Schema{
		Description: "Convert a column's text to lower case",
		Required:    map[string]registry.ValueType{"column": registry.TypeString},
		RowCapable:  true,
	}, func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		col, _ := cfg["column"].(string)
		return &caseStep{input: []string{col}, mode: "lower"}, nil
	})

	r.MustRegister("convert.case", registry.Schema{
		Description: "Change the case of text in one or more columns",
		Required: map[string]registry.ValueType{
			"input": registry.TypeAny,
			"case":  registry.TypeString,
		},
		Optional: map[string]registry.ValueType{
			"output": registry.TypeAny,
		},
		RowCapable: true,
	}, newConvertCase)
}

func newConvertCase(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, output, err := inputOutput(cfg)
	if err != nil {
		return nil, err
	}
	mode, _ := cfg["case"].(string)
	mode = strings.ToLower(mode)
	switch mode {
	case "upper", "lower", "title":
	default:
		return nil, fmt.Errorf("%w: case must be upper, lower or title (got %q)", errs.ErrConfigInvalid, mode)
	}
	return &caseStep{input: input, output: output, mode: mode}, nil
}

// caseStep rewrites text case across the selected columns.
type caseStep struct {
	input  []string
	output []string
	mode   string
}

func (s *caseStep) convert(text string) string {
	switch s.mode {
	case "upper":
		return strings.ToUpper(text)
	case "lower":
		return strings.ToLower(text)
	default:
		return titleCase(text)
	}
}

func (s *caseStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
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
		converted := make([]interface{}, len(values))
		for r, v := range values {
			converted[r] = s.convert(asString(v))
		}
		if err := writeColumn(ds, output[i], converted); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (s *caseStep) ApplyRow(ctx context.Context, row map[string]interface{}) (map[string]interface{}, error) {
	output := s.output
	if len(output) == 0 {
		output = s.input
	}
	for i, col := range s.input {
		v, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, col)
		}
		row[output[i]] = s.convert(asString(v))
	}
	return row, nil
}

// writeColumn replaces a column's values, creating the column when
// it does not exist yet.
func writeColumn(ds *dataset.Dataset, name string, values []interface{}) error {
	if !ds.HasColumn(name) {
		return ds.AddColumn(name, values)
	}
	for r, v := range values {
		if err := ds.SetValue(r, name, v); err != nil {
			return err
		}
	}
	return nil
}

// titleCase capitalizes the first letter of each space-separated
// word.
func titleCase(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
