package steps

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/recipe"
	"github.com/skillet-data/skillet/internal/registry"
)

// Conditional groups are recursive step-list nodes: a step whose
// execution is "evaluate predicate, then recurse into the child step
// list". The executor's main loop never special-cases them.
//
// "if" evaluates its condition once against the run's variables plus
// dataset facts; "if.rows" evaluates per row against the row's
// values. The granularity is declared by the kind, never inferred.
func registerGroups(r *registry.Registry) {
	r.MustRegister("if", registry.Schema{
		Description: "Run the nested steps when a condition holds for the dataset",
		Required: map[string]registry.ValueType{
			"condition": registry.TypeString,
			"steps":     registry.TypeList,
		},
		NestedSteps: []string{"steps"},
	}, newGroup(false))

	r.MustRegister("if.rows", registry.Schema{
		Description: "Run the nested steps over the rows where a condition holds",
		Required: map[string]registry.ValueType{
			"condition": registry.TypeString,
			"steps":     registry.TypeList,
		},
		NestedSteps: []string{"steps"},
	}, newGroup(true))
}

func newGroup(perRow bool) registry.Factory {
	return func(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
		condition, _ := cfg["condition"].(string)
		nested, err := recipe.ConfigSteps(cfg["steps"])
		if err != nil {
			return nil, err
		}
		children := make([]registry.Step, len(nested))
		for i, child := range nested {
			entry, err := env.Kinds.Resolve(child.Kind)
			if err != nil {
				return nil, err
			}
			children[i], err = entry.Factory(child.Config, env)
			if err != nil {
				return nil, fmt.Errorf("nested step %q: %w", child.Kind, err)
			}
		}
		tmpl, err := template.New("condition").Option("missingkey=zero").Parse(condition)
		if err != nil {
			return nil, fmt.Errorf("%w: condition: %v", errs.ErrConfigInvalid, err)
		}
		return &groupStep{tmpl: tmpl, children: children, perRow: perRow, variables: env.Variables}, nil
	}
}

type groupStep struct {
	tmpl      *template.Template
	children  []registry.Step
	perRow    bool
	variables map[string]string
}

// truthy renders the condition template against data and interprets
// the result the way shell-style conditions read.
func (s *groupStep) truthy(data map[string]interface{}) (bool, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return false, fmt.Errorf("%w: condition: %v", errs.ErrConfigInvalid, err)
	}
	result := strings.TrimSpace(strings.ToLower(buf.String()))
	return result == "true" || result == "yes" || result == "1", nil
}

func (s *groupStep) conditionData(ds *dataset.Dataset) map[string]interface{} {
	data := make(map[string]interface{}, len(s.variables)+1)
	for k, v := range s.variables {
		data[k] = v
	}
	data["rows"] = ds.NumRows()
	return data
}

func (s *groupStep) applyChildren(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	var err error
	for _, child := range s.children {
		ds, err = child.Apply(ctx, ds)
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (s *groupStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !s.perRow {
		run, err := s.truthy(s.conditionData(ds))
		if err != nil {
			return nil, err
		}
		if !run {
			return ds, nil
		}
		return s.applyChildren(ctx, ds)
	}
	return s.applyMatchingRows(ctx, ds)
}

// applyMatchingRows partitions rows by the predicate, applies the
// children to the matching subset and stitches the results back in
// original row order. Children of a per-row group must preserve the
// column set and the subset's row count.
func (s *groupStep) applyMatchingRows(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	match := make([]bool, ds.NumRows())
	total := 0
	for r := 0; r < ds.NumRows(); r++ {
		data := make(map[string]interface{})
		for k, v := range s.variables {
			data[k] = v
		}
		for k, v := range ds.RowMap(r) {
			data[k] = v
		}
		ok, err := s.truthy(data)
		if err != nil {
			return nil, err
		}
		match[r] = ok
		if ok {
			total++
		}
	}
	if total == 0 {
		return ds, nil
	}

	subset := ds.FilterRows(func(r int) bool { return match[r] })
	transformed, err := s.applyChildren(ctx, subset)
	if err != nil {
		return nil, err
	}
	if transformed.NumRows() != total {
		return nil, fmt.Errorf("%w: per-row group changed the subset row count (%d to %d)",
			errs.ErrRowCountMismatch, total, transformed.NumRows())
	}
	cols := ds.Columns()
	tcols := transformed.Columns()
	if len(cols) != len(tcols) {
		return nil, fmt.Errorf("%w: per-row group changed the column set", errs.ErrSchemaMismatch)
	}

	sub := 0
	for r := 0; r < ds.NumRows(); r++ {
		if !match[r] {
			continue
		}
		for _, c := range cols {
			v, err := transformed.Value(sub, c)
			if err != nil {
				return nil, err
			}
			if err := ds.SetValue(r, c, v); err != nil {
				return nil, err
			}
		}
		sub++
	}
	return ds, nil
}
