package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerFilter(r *registry.Registry) {
	r.MustRegister("filter.where", registry.Schema{
		Description: "Keep only rows matching a condition on one column",
		Required:    map[string]registry.ValueType{"input": registry.TypeString},
		Optional: map[string]registry.ValueType{
			"equals":     registry.TypeAny,
			"not_equals": registry.TypeAny,
			"contains":   registry.TypeString,
			"not_empty":  registry.TypeBool,
		},
	}, newFilterWhere)
}

func newFilterWhere(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	s := &filterStep{input: cfg["input"].(string)}
	conditions := 0
	if v, ok := cfg["equals"]; ok {
		s.equals, s.hasEquals = v, true
		conditions++
	}
	if v, ok := cfg["not_equals"]; ok {
		s.notEquals, s.hasNotEquals = v, true
		conditions++
	}
	if v, ok := cfg["contains"].(string); ok {
		s.contains = v
		conditions++
	}
	if v, ok := cfg["not_empty"].(bool); ok && v {
		s.notEmpty = true
		conditions++
	}
	if conditions == 0 {
		return nil, fmt.Errorf("%w: filter.where requires one of equals, not_equals, contains, not_empty", errs.ErrConfigInvalid)
	}
	return s, nil
}

type filterStep struct {
	input        string
	equals       interface{}
	hasEquals    bool
	notEquals    interface{}
	hasNotEquals bool
	contains     string
	notEmpty     bool
}

func (s *filterStep) matches(v interface{}) bool {
	if s.hasEquals && asString(v) != asString(s.equals) {
		return false
	}
	if s.hasNotEquals && asString(v) == asString(s.notEquals) {
		return false
	}
	if s.contains != "" && !strings.Contains(asString(v), s.contains) {
		return false
	}
	if s.notEmpty && asString(v) == "" {
		return false
	}
	return true
}

func (s *filterStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	values, err := ds.Column(s.input)
	if err != nil {
		return nil, err
	}
	return ds.FilterRows(func(row int) bool {
		return s.matches(values[row])
	}), nil
}
