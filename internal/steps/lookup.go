package steps

import (
	"context"
	"fmt"

	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

func registerLookup(r *registry.Registry) {
	r.MustRegister("sql.lookup", registry.Schema{
		Description: "Look each value up with a parameterized SQL query",
		Required: map[string]registry.ValueType{
			"input": registry.TypeString,
			"query": registry.TypeString,
		},
		Optional: map[string]registry.ValueType{
			"output":  registry.TypeString,
			"default": registry.TypeAny,
		},
	}, newLookup)
}

func newLookup(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, _ := cfg["input"].(string)
	query, _ := cfg["query"].(string)
	output, _ := cfg["output"].(string)
	if output == "" {
		output = input
	}
	conn, err := env.Connectors.Resolve("postgres")
	if err != nil {
		return nil, err
	}
	return &lookupStep{
		input: input, output: output, query: query,
		fallback:    cfg["default"],
		conn:        conn,
		credentials: env.Credentials("postgres"),
	}, nil
}

// singleValueLookup is the extended database capability behind
// sql.lookup, reached by type assertion on the open handle.
type singleValueLookup interface {
	Lookup(ctx context.Context, query string, key interface{}) (interface{}, error)
}

type lookupStep struct {
	input       string
	output      string
	query       string
	fallback    interface{}
	conn        connector.Connector
	credentials connector.Credentials
}

func (s *lookupStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	values, err := ds.Column(s.input)
	if err != nil {
		return nil, err
	}
	results := make([]interface{}, len(values))

	loc := connector.Location{"query": s.query}
	err = connector.WithHandle(ctx, s.conn, loc, s.credentials, func(h connector.Handle) error {
		lu, ok := h.(singleValueLookup)
		if !ok {
			return fmt.Errorf("%w: connector %q does not support lookups", errs.ErrConfigInvalid, s.conn.Name())
		}
		// Repeated keys hit the cache, not the database.
		cache := make(map[string]interface{})
		for r, v := range values {
			key := asString(v)
			if cached, hit := cache[key]; hit {
				results[r] = cached
				continue
			}
			out, err := lu.Lookup(ctx, s.query, v)
			if err != nil {
				return err
			}
			if out == nil {
				out = s.fallback
			}
			cache[key] = out
			results[r] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := writeColumn(ds, s.output, results); err != nil {
		return nil, err
	}
	return ds, nil
}
