package connector

import (
	"context"
	"fmt"
	"sort"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
)

// TestConnector generates synthetic data in-process:
//
//	read:
//	  - test:
//	      rows: 3
//	      values:
//	        column1: value1
//
// It exists so recipes and engine tests can run without touching any
// external system.
type TestConnector struct{}

// NewTestConnector returns the test data generator.
func NewTestConnector() *TestConnector { return &TestConnector{} }

func (c *TestConnector) Name() string { return "test" }

func (c *TestConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	rows := loc.Int("rows", 1)
	values, ok := loc["values"].(map[string]interface{})
	if !ok || len(values) == 0 {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: test connector requires 'values'", errs.ErrConfigInvalid),
		}
	}
	return &testHandle{readOnly: readOnly{name: c.Name()}, rows: rows, values: values}, nil
}

type testHandle struct {
	readOnly
	rows   int
	values map[string]interface{}
	closed bool
}

func (h *testHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	cols := make([]string, 0, len(h.values))
	for c := range h.values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	ds, err := dataset.New(cols...)
	if err != nil {
		return nil, err
	}
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = h.values[c]
	}
	for r := 0; r < h.rows; r++ {
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (h *testHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	return nil
}
