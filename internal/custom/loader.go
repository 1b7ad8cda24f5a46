// Package custom resolves externally supplied code into steps. A
// recipe references a custom function as the step kind
// "custom.<name>"; the name maps to an exported symbol in a Go
// plugin supplied on the command line. Resolved functions are
// registered into the run's overlay registry only — never globally —
// so nothing leaks across runs.
//
// Plugins are built outside this module, so the three signature
// classes use only plain types:
//
//	row-wise:       func(map[string]interface{}) (map[string]interface{}, error)
//	column-wise:    func([]interface{}) ([]interface{}, error)
//	whole-dataset:  func([]string, [][]interface{}) ([]string, [][]interface{}, error)
package custom

import (
	"fmt"
	"os"
	"plugin"
	"strings"

	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

// Signature classes a custom function may declare.
const (
	KindRow     = "row"
	KindColumn  = "column"
	KindDataset = "dataset"
)

// RowFunc transforms one row map.
type RowFunc func(map[string]interface{}) (map[string]interface{}, error)

// ColumnFunc transforms one column's values.
type ColumnFunc func([]interface{}) ([]interface{}, error)

// DatasetFunc transforms the whole table.
type DatasetFunc func(columns []string, rows [][]interface{}) ([]string, [][]interface{}, error)

// Function is a resolved, signature-checked callable.
type Function struct {
	Name    string
	Kind    string
	Row     RowFunc
	Column  ColumnFunc
	Dataset DatasetFunc
}

// Loader opens plugin files on request. Dynamic code loading is an
// explicit capability: nothing is loaded unless the caller asks.
type Loader struct {
	plugins []loadedPlugin
}

type loadedPlugin struct {
	path string
	p    *plugin.Plugin
}

// NewLoader returns a loader with no files loaded.
func NewLoader() *Loader { return &Loader{} }

// LoadFile opens one plugin file. Load order matters: earlier files
// win when two files export the same symbol.
func (l *Loader) LoadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &errs.CustomFunctionError{File: path, Reason: errs.ErrFunctionFileNotFound}
	}
	p, err := plugin.Open(path)
	if err != nil {
		return &errs.CustomFunctionError{File: path, Reason: fmt.Errorf("%w: %v", errs.ErrFunctionFileNotFound, err)}
	}
	l.plugins = append(l.plugins, loadedPlugin{path: path, p: p})
	logger.LogDebug("loaded custom function file", map[string]interface{}{"path": path})
	return nil
}

// Resolve finds the named function and checks it against the
// declared signature class. declaredKind may be empty, in which case
// the class is inferred from the symbol's actual signature.
func (l *Loader) Resolve(name, declaredKind string) (*Function, error) {
	symbol := exportedName(name)
	for _, lp := range l.plugins {
		sym, err := lp.p.Lookup(symbol)
		if err != nil {
			continue
		}
		fn, err := classify(name, sym)
		if err != nil {
			return nil, &errs.CustomFunctionError{File: lp.path, Symbol: symbol, Reason: err}
		}
		if declaredKind != "" && declaredKind != fn.Kind {
			return nil, &errs.CustomFunctionError{
				File: lp.path, Symbol: symbol,
				Reason: fmt.Errorf("%w: declared %s, symbol is %s", errs.ErrFunctionSignature, declaredKind, fn.Kind),
			}
		}
		return fn, nil
	}
	return nil, &errs.CustomFunctionError{
		File:   pluginPaths(l.plugins),
		Symbol: symbol,
		Reason: errs.ErrFunctionNotFound,
	}
}

func classify(name string, sym plugin.Symbol) (*Function, error) {
	switch fn := sym.(type) {
	case func(map[string]interface{}) (map[string]interface{}, error):
		return &Function{Name: name, Kind: KindRow, Row: fn}, nil
	case func([]interface{}) ([]interface{}, error):
		return &Function{Name: name, Kind: KindColumn, Column: fn}, nil
	case func([]string, [][]interface{}) ([]string, [][]interface{}, error):
		return &Function{Name: name, Kind: KindDataset, Dataset: fn}, nil
	default:
		return nil, fmt.Errorf("%w: %T", errs.ErrFunctionSignature, sym)
	}
}

// exportedName maps a recipe function name to its exported plugin
// symbol: "clean_name" → "CleanName".
func exportedName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func pluginPaths(plugins []loadedPlugin) string {
	paths := make([]string, len(plugins))
	for i, lp := range plugins {
		paths[i] = lp.path
	}
	return strings.Join(paths, ", ")
}
