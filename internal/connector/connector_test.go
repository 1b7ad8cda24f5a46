package connector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
)

// fakeConnector counts opens and closes for lifecycle tests.
type fakeConnector struct {
	opens   int
	closes  int
	openErr error
}

func (c *fakeConnector) Name() string { return "fake" }

func (c *fakeConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.opens++
	return &fakeHandle{conn: c}, nil
}

type fakeHandle struct {
	conn   *fakeConnector
	closed bool
}

func (h *fakeHandle) Read(ctx context.Context) (*dataset.Dataset, error) { return dataset.New("a") }
func (h *fakeHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	return nil
}
func (h *fakeHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	h.conn.closes++
	return nil
}

func TestWithHandleClosesOnSuccess(t *testing.T) {
	c := &fakeConnector{}
	err := WithHandle(context.Background(), c, Location{}, nil, func(h Handle) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithHandle failed: %v", err)
	}
	if c.opens != 1 || c.closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1/1", c.opens, c.closes)
	}
}

func TestWithHandleClosesOnError(t *testing.T) {
	c := &fakeConnector{}
	boom := fmt.Errorf("boom")
	err := WithHandle(context.Background(), c, Location{}, nil, func(h Handle) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn's error, got %v", err)
	}
	if c.closes != 1 {
		t.Errorf("handle not closed after fn error: closes=%d", c.closes)
	}
}

func TestWithHandleClosesOnPanic(t *testing.T) {
	c := &fakeConnector{}
	func() {
		defer func() { recover() }()
		WithHandle(context.Background(), c, Location{}, nil, func(h Handle) error {
			panic("step blew up")
		})
	}()
	if c.closes != 1 {
		t.Errorf("handle not closed after panic: closes=%d", c.closes)
	}
}

func TestWithHandlePropagatesOpenFailure(t *testing.T) {
	c := &fakeConnector{openErr: &errs.ConnectionError{Connector: "fake", Attempts: 3, Err: fmt.Errorf("refused")}}
	err := WithHandle(context.Background(), c, Location{}, nil, func(h Handle) error {
		t.Errorf("fn must not run when open fails")
		return nil
	})
	if !errors.Is(err, errs.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestRegistryResolveAndDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeConnector{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&fakeConnector{}); !errors.Is(err, errs.ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
	if _, err := r.Resolve("fake"); err != nil {
		t.Errorf("Resolve failed: %v", err)
	}
	if _, err := r.Resolve("absent"); !errors.Is(err, errs.ErrConnectorNotFound) {
		t.Errorf("expected ErrConnectorNotFound, got %v", err)
	}
}

func TestDefaultsRegisterBuiltins(t *testing.T) {
	names := Defaults().Names()
	want := []string{"file", "inference", "objectstore", "postgres", "test"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("got %v, want %v", names, want)
		}
	}
}
