package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerColumns(r *registry.Registry) {
	r.MustRegister("rename", registry.Schema{
		Description: "Rename columns; wildcards rename every match",
		Required:    map[string]registry.ValueType{"columns": registry.TypeMap},
	}, newRename)

	r.MustRegister("copy", registry.Schema{
		Description: "Copy a column to a new name",
		Required: map[string]registry.ValueType{
			"input":  registry.TypeString,
			"output": registry.TypeString,
		},
	}, newCopy)

	r.MustRegister("drop", registry.Schema{
		Description: "Remove columns from the dataset",
		Required:    map[string]registry.ValueType{"columns": registry.TypeAny},
	}, newDrop)

	r.MustRegister("select", registry.Schema{
		Description: "Keep only the named columns, in the given order",
		Required:    map[string]registry.ValueType{"columns": registry.TypeAny},
	}, newSelect)
}

func newRename(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	raw, _ := cfg["columns"].(map[string]interface{})
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: rename requires a 'columns' mapping", errs.ErrConfigInvalid)
	}
	renames := make(map[string]string, len(raw))
	order := make([]string, 0, len(raw))
	for from, to := range raw {
		s, ok := to.(string)
		if !ok {
			return nil, fmt.Errorf("%w: rename target for %q is %T, want string", errs.ErrConfigInvalid, from, to)
		}
		renames[from] = s
		order = append(order, from)
	}
	// yaml maps decode unordered; sort for deterministic application
	sort.Strings(order)
	return &renameStep{renames: renames, order: order}, nil
}

type renameStep struct {
	renames map[string]string
	order   []string
}

func (s *renameStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	pairs, err := ds.ExpandRenames(s.renames, s.order)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := ds.RenameColumn(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func newCopy(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, _ := cfg["input"].(string)
	output, _ := cfg["output"].(string)
	return &copyStep{input: input, output: output}, nil
}

type copyStep struct {
	input  string
	output string
}

func (s *copyStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	values, err := ds.Column(s.input)
	if err != nil {
		return nil, err
	}
	if err := writeColumn(ds, s.output, values); err != nil {
		return nil, err
	}
	return ds, nil
}

func newDrop(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	cols, err := stringOrList(cfg["columns"])
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: drop requires 'columns'", errs.ErrConfigInvalid)
	}
	return &dropStep{columns: cols}, nil
}

type dropStep struct {
	columns []string
}

func (s *dropStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	expanded, err := ds.ExpandColumns(s.columns)
	if err != nil {
		return nil, err
	}
	for _, c := range expanded {
		if err := ds.DropColumn(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func newSelect(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	cols, err := stringOrList(cfg["columns"])
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: select requires 'columns'", errs.ErrConfigInvalid)
	}
	return &selectStep{columns: cols}, nil
}

type selectStep struct {
	columns []string
}

func (s *selectStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	expanded, err := ds.ExpandColumns(s.columns)
	if err != nil {
		return nil, err
	}
	return ds.Select(expanded)
}
