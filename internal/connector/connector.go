// Package connector defines the uniform read/write capability the
// executor uses to reach external systems, and the concrete variants
// behind it (files, Postgres, object storage, inference endpoints).
// The executor depends only on the Connector/Handle capability set;
// variants are selected by name through the registry, never by
// conditional logic in the engine.
package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
)

// Credentials is the opaque credential bundle supplied by run-scoped
// configuration. The engine passes it to Open unmodified.
type Credentials map[string]interface{}

// Location identifies one endpoint within a connector's namespace:
// a file path, a table or query, an object key. It is the step's
// configuration as seen by the connector.
type Location map[string]interface{}

// String returns a string-typed location value, or "" when absent.
func (l Location) String(key string) string {
	if v, ok := l[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an int-typed location value, or def when absent.
func (l Location) Int(key string, def int) int {
	switch v := l[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Describe renders a location for error messages, preferring the
// most specific identifying key.
func (l Location) Describe() string {
	for _, k := range []string{"name", "key", "query", "table", "model"} {
		if s := l.String(k); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%v", map[string]interface{}(l))
}

// Handle is a capability bound to one opened endpoint. It is owned
// exclusively by the step that opened it and must be closed exactly
// once; see WithHandle.
type Handle interface {
	Read(ctx context.Context) (*dataset.Dataset, error)
	Write(ctx context.Context, ds *dataset.Dataset) error
	Close() error
}

// Connector opens Handles. Open failures, including any retries the
// connector chooses to perform, surface as a single terminal
// *errs.ConnectionError.
type Connector interface {
	Name() string
	Open(ctx context.Context, loc Location, creds Credentials) (Handle, error)
}

// WithHandle opens a handle, runs fn, and guarantees Close is called
// exactly once on every exit path, including panics in fn. A close
// failure after a successful fn is reported; after a failed fn it is
// subordinate to fn's error.
func WithHandle(ctx context.Context, c Connector, loc Location, creds Credentials, fn func(Handle) error) (err error) {
	h, err := c.Open(ctx, loc, creds)
	if err != nil {
		return err
	}
	var closeOnce sync.Once
	closeHandle := func() {
		closeOnce.Do(func() {
			if cerr := h.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: %s: %v", errs.ErrHandleClosed, c.Name(), cerr)
			}
		})
	}
	defer closeHandle()

	err = fn(h)
	return err
}

// readOnly is embedded by connectors without write support.
type readOnly struct{ name string }

func (r readOnly) Write(ctx context.Context, ds *dataset.Dataset) error {
	return &errs.ConnectorIOError{
		Connector: r.name, Op: "write", FirstRow: -1, LastRow: -1,
		Err: fmt.Errorf("connector does not support writes"),
	}
}
