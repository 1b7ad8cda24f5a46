package steps

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/registry"
)

// fakeInference echoes each input back with a marker, so tests can
// check per-row alignment after concurrent batches.
type fakeInference struct {
	calls int
}

func (c *fakeInference) Name() string { return "inference" }

func (c *fakeInference) Open(ctx context.Context, loc connector.Location, creds connector.Credentials) (connector.Handle, error) {
	return &fakeInferenceHandle{conn: c}, nil
}

type fakeInferenceHandle struct {
	conn *fakeInference
}

func (h *fakeInferenceHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	return nil, fmt.Errorf("not readable")
}
func (h *fakeInferenceHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	return fmt.Errorf("not writable")
}
func (h *fakeInferenceHandle) Close() error { return nil }

func (h *fakeInferenceHandle) Predict(ctx context.Context, inputs []string) ([]string, error) {
	h.conn.calls++
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = "label:" + in
	}
	return out, nil
}

func TestClassifyPreservesRowOrder(t *testing.T) {
	conns := connector.NewRegistry()
	fake := &fakeInference{}
	conns.MustRegister(fake)

	ds, _ := dataset.New("text")
	for i := 0; i < 55; i++ {
		ds.AppendRow([]interface{}{fmt.Sprintf("row-%02d", i)})
	}

	kinds := Defaults()
	entry, err := kinds.Resolve("classify")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	step, err := entry.Factory(map[string]interface{}{
		"input": "text", "model": "demo", "output": "label",
	}, registry.RunEnv{
		Connectors:     conns,
		Credentials:    func(string) connector.Credentials { return nil },
		RowConcurrency: 4,
	})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}

	out, err := step.Apply(context.Background(), ds)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	for i := 0; i < 55; i++ {
		v, _ := out.Value(i, "label")
		want := fmt.Sprintf("label:row-%02d", i)
		if v != want {
			t.Fatalf("row %d: got %v, want %s", i, v, want)
		}
	}
	// 55 rows in batches of 20 -> 3 requests
	if fake.calls != 3 {
		t.Errorf("predict calls: got %d, want 3", fake.calls)
	}
}

// fakeLookup maps keys to values for sql.lookup tests, standing in
// for the database connector.
type fakeLookup struct {
	queries int
}

func (c *fakeLookup) Name() string { return "postgres" }

func (c *fakeLookup) Open(ctx context.Context, loc connector.Location, creds connector.Credentials) (connector.Handle, error) {
	return &fakeLookupHandle{conn: c}, nil
}

type fakeLookupHandle struct {
	conn *fakeLookup
}

func (h *fakeLookupHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	return nil, fmt.Errorf("not readable")
}
func (h *fakeLookupHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	return fmt.Errorf("not writable")
}
func (h *fakeLookupHandle) Close() error { return nil }

func (h *fakeLookupHandle) Lookup(ctx context.Context, query string, key interface{}) (interface{}, error) {
	h.conn.queries++
	s, _ := key.(string)
	if s == "unknown" {
		return nil, nil
	}
	return strings.ToUpper(s), nil
}

func TestLookupCachesRepeatedKeysAndAppliesDefault(t *testing.T) {
	conns := connector.NewRegistry()
	fake := &fakeLookup{}
	conns.MustRegister(fake)

	ds, _ := dataset.New("code")
	for _, v := range []string{"ab", "cd", "ab", "unknown"} {
		ds.AppendRow([]interface{}{v})
	}

	kinds := Defaults()
	entry, err := kinds.Resolve("sql.lookup")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	step, err := entry.Factory(map[string]interface{}{
		"input": "code", "query": "select name from codes where code = $1",
		"output": "resolved", "default": "n/a",
	}, registry.RunEnv{
		Connectors:  conns,
		Credentials: func(string) connector.Credentials { return nil },
	})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}

	out, err := step.Apply(context.Background(), ds)
	if err != nil {
		t.Fatalf("sql.lookup failed: %v", err)
	}
	want := []interface{}{"AB", "CD", "AB", "n/a"}
	for i, w := range want {
		v, _ := out.Value(i, "resolved")
		if v != w {
			t.Errorf("row %d: got %v, want %v", i, v, w)
		}
	}
	// "ab" repeats; only three distinct keys reach the database
	if fake.queries != 3 {
		t.Errorf("queries: got %d, want 3", fake.queries)
	}
}
