package custom

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

// Prefix namespaces custom function kinds away from built-ins.
const Prefix = "custom."

// Entry resolves a "custom.<name>" kind into a registry entry for
// the run's overlay. The symbol is looked up and signature-checked
// here, at step-resolution time, so an invalid reference fails the
// run before any row is read.
func (l *Loader) Entry(kind string) (registry.Schema, registry.Factory, error) {
	name := strings.TrimPrefix(kind, Prefix)
	fn, err := l.Resolve(name, "")
	if err != nil {
		return registry.Schema{}, nil, err
	}

	schema := registry.Schema{
		Description: fmt.Sprintf("custom function %s (%s-wise)", name, fn.Kind),
		Optional: map[string]registry.ValueType{
			"input":       registry.TypeAny,
			"output":      registry.TypeAny,
			"granularity": registry.TypeString,
		},
		Open:       true,
		RowCapable: fn.Kind == KindRow,
	}

	factory := func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		if declared, _ := cfg["granularity"].(string); declared != "" && declared != fn.Kind {
			return nil, &errs.CustomFunctionError{
				Symbol: name,
				Reason: fmt.Errorf("%w: declared %s, symbol is %s", errs.ErrFunctionSignature, declared, fn.Kind),
			}
		}
		switch fn.Kind {
		case KindRow:
			return &rowFuncStep{fn: fn.Row}, nil
		case KindColumn:
			input, output, err := columnSelection(cfg)
			if err != nil {
				return nil, err
			}
			return &columnFuncStep{fn: fn.Column, input: input, output: output}, nil
		default:
			return &datasetFuncStep{fn: fn.Dataset}, nil
		}
	}
	return schema, factory, nil
}

type rowFuncStep struct {
	fn RowFunc
}

func (s *rowFuncStep) ApplyRow(ctx context.Context, row map[string]interface{}) (map[string]interface{}, error) {
	return s.fn(row)
}

// Apply rebuilds the dataset from the function's returned row maps,
// so keys the function adds become columns regardless of the step's
// error policy. New columns follow the existing ones in sorted name
// order.
func (s *rowFuncStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	cols := ds.Columns()
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	var added []string
	rows := make([]map[string]interface{}, ds.NumRows())
	for r := 0; r < ds.NumRows(); r++ {
		out, err := s.fn(ds.RowMap(r))
		if err != nil {
			return nil, err
		}
		for k := range out {
			if !known[k] {
				known[k] = true
				added = append(added, k)
			}
		}
		rows[r] = out
	}
	sort.Strings(added)
	return dataset.FromRows(append(cols, added...), rows)
}

type columnFuncStep struct {
	fn     ColumnFunc
	input  []string
	output []string
}

func (s *columnFuncStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	input, err := ds.ExpandColumns(s.input)
	if err != nil {
		return nil, err
	}
	output := s.output
	if len(output) == 0 {
		output = input
	}
	if len(output) != len(input) {
		return nil, fmt.Errorf("%w: %d input column(s), %d output column(s)", errs.ErrConfigInvalid, len(input), len(output))
	}
	for i, col := range input {
		values, err := ds.Column(col)
		if err != nil {
			return nil, err
		}
		transformed, err := s.fn(values)
		if err != nil {
			return nil, err
		}
		if len(transformed) != len(values) {
			return nil, fmt.Errorf("column function returned %d values for %d rows", len(transformed), len(values))
		}
		target := output[i]
		if !ds.HasColumn(target) {
			if err := ds.AddColumn(target, transformed); err != nil {
				return nil, err
			}
			continue
		}
		for r, v := range transformed {
			if err := ds.SetValue(r, target, v); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

type datasetFuncStep struct {
	fn DatasetFunc
}

func (s *datasetFuncStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	cols := ds.Columns()
	rows := make([][]interface{}, ds.NumRows())
	for r := range rows {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			row[i], _ = ds.Value(r, c)
		}
		rows[r] = row
	}
	outCols, outRows, err := s.fn(cols, rows)
	if err != nil {
		return nil, err
	}
	out, err := dataset.New(outCols...)
	if err != nil {
		return nil, err
	}
	for _, row := range outRows {
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// columnSelection reads input/output configuration that may be a
// single column name or a list of names.
func columnSelection(cfg map[string]interface{}) (input, output []string, err error) {
	input, err = stringOrList(cfg["input"])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: input: %v", errs.ErrConfigInvalid, err)
	}
	if len(input) == 0 {
		return nil, nil, fmt.Errorf("%w: column function requires 'input'", errs.ErrConfigInvalid)
	}
	output, err = stringOrList(cfg["output"])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: output: %v", errs.ErrConfigInvalid, err)
	}
	return input, output, nil
}

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
				return nil, fmt.Errorf("list element %d is %T, want string", i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want string or list, got %T", v)
	}
}
