// Package recipe loads the declarative recipe document: ordered
// read, wrangles and write sections whose entries are single-key
// mappings of step kind to configuration. Variable substitution and
// file inclusion are fully resolved here, before the document ever
// reaches the validator.
package recipe

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/skillet-data/skillet/internal/errs"
)

// Step is one declared unit of work: a kind name plus its raw
// configuration mapping. Configuration values are untyped at this
// point; the schema validator checks them against the kind's
// registered schema.
type Step struct {
	Kind   string
	Config map[string]interface{}
}

// Recipe is the parsed, fully-resolved document. It is immutable
// once loaded and owned by exactly one pipeline run.
type Recipe struct {
	Read     []Step `yaml:"read"`
	Wrangles []Step `yaml:"wrangles"`
	Write    []Step `yaml:"write"`
}

// UnmarshalYAML decodes a step from its recipe form:
//
//	- kind:
//	    key: value
//
// A bare scalar entry (a kind with no configuration) is also
// accepted, as is a kind with a null body.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Kind = node.Value
		s.Config = map[string]interface{}{}
		return nil
	}
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("%w: step must be a single-key mapping (line %d)", errs.ErrRecipeParse, node.Line)
	}
	s.Kind = node.Content[0].Value

	body := node.Content[1]
	if body.Tag == "!!null" {
		s.Config = map[string]interface{}{}
		return nil
	}
	var cfg map[string]interface{}
	if err := body.Decode(&cfg); err != nil {
		return fmt.Errorf("%w: configuration for %q (line %d): %v", errs.ErrRecipeParse, s.Kind, body.Line, err)
	}
	s.Config = cfg
	return nil
}

// MarshalYAML renders the step back to its single-key mapping form.
func (s Step) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{s.Kind: s.Config}, nil
}

// ConfigSteps decodes a nested step list held inside a step's
// configuration (conditional groups, read-combinator sources).
func ConfigSteps(value interface{}) ([]Step, error) {
	raw, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRecipeParse, err)
	}
	var steps []Step
	if err := yaml.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("%w: nested step list: %v", errs.ErrRecipeParse, err)
	}
	return steps, nil
}

// Parse decodes a fully-resolved recipe document.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRecipeParse, err)
	}
	return &r, nil
}
