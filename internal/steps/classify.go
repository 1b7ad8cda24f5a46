package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/registry"
)

// classifyBatchSize bounds how many values travel in one inference
// request.
const classifyBatchSize = 20

func registerClassify(r *registry.Registry) {
	r.MustRegister("classify", registry.Schema{
		Description: "Classify a column's values with a hosted model",
		Required: map[string]registry.ValueType{
			"input": registry.TypeString,
			"model": registry.TypeString,
		},
		Optional: map[string]registry.ValueType{
			"output": registry.TypeString,
		},
	}, newClassify)
}

func newClassify(cfg map[string]interface{}, env registry.RunEnv) (registry.Step, error) {
	input, _ := cfg["input"].(string)
	model, _ := cfg["model"].(string)
	output, _ := cfg["output"].(string)
	if output == "" {
		output = input
	}
	conn, err := env.Connectors.Resolve("inference")
	if err != nil {
		return nil, err
	}
	return &classifyStep{
		input: input, output: output, model: model,
		conn:        conn,
		credentials: env.Credentials("inference"),
		concurrency: env.RowConcurrency,
	}, nil
}

// predictor is the extended inference capability beyond the core
// Handle set.
type predictor interface {
	Predict(ctx context.Context, inputs []string) ([]string, error)
}

type classifyStep struct {
	input       string
	output      string
	model       string
	conn        connector.Connector
	credentials connector.Credentials
	concurrency int
}

// Apply classifies every value of the input column. Batches are
// dispatched concurrently up to the configured bound, but results
// are reassembled by batch index so row order is never observable as
// reordered.
func (s *classifyStep) Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	values, err := ds.Column(s.input)
	if err != nil {
		return nil, err
	}
	inputs := make([]string, len(values))
	for i, v := range values {
		inputs[i] = asString(v)
	}

	loc := connector.Location{"model": s.model}
	results := make([]interface{}, len(inputs))

	err = connector.WithHandle(ctx, s.conn, loc, s.credentials, func(h connector.Handle) error {
		p, ok := h.(predictor)
		if !ok {
			return fmt.Errorf("%w: connector %q does not support prediction", errs.ErrConfigInvalid, s.conn.Name())
		}

		type batch struct{ start, end int }
		var batches []batch
		for start := 0; start < len(inputs); start += classifyBatchSize {
			end := start + classifyBatchSize
			if end > len(inputs) {
				end = len(inputs)
			}
			batches = append(batches, batch{start, end})
		}

		concurrency := s.concurrency
		if concurrency < 1 {
			concurrency = 1
		}
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstErr error

		for _, b := range batches {
			wg.Add(1)
			sem <- struct{}{}
			go func(b batch) {
				defer wg.Done()
				defer func() { <-sem }()
				predictions, err := p.Predict(ctx, inputs[b.start:b.end])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				for i, pred := range predictions {
					results[b.start+i] = pred
				}
			}(b)
		}
		wg.Wait()
		return firstErr
	})
	if err != nil {
		return nil, err
	}

	if err := writeColumn(ds, s.output, results); err != nil {
		return nil, err
	}
	return ds, nil
}
