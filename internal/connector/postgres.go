package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

const (
	pgOpenAttempts  = 3
	pgOpenBaseDelay = 500 * time.Millisecond
)

// PostgresConnector reads query results into a dataset and writes
// datasets into tables via COPY. Credentials carry the DSN; the
// location names a query (read) or table (read/write).
type PostgresConnector struct{}

// NewPostgresConnector returns the Postgres connector.
func NewPostgresConnector() *PostgresConnector { return &PostgresConnector{} }

func (c *PostgresConnector) Name() string { return "postgres" }

// Open establishes a pooled connection. Transient connect failures
// are retried with doubling delay; exhaustion surfaces as a single
// terminal ConnectionError.
func (c *PostgresConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	dsn, _ := creds["dsn"].(string)
	if dsn == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: postgres dsn", errs.ErrMissingCredentials),
		}
	}
	if loc.String("query") == "" && loc.String("table") == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: postgres connector requires 'query' or 'table'", errs.ErrConfigInvalid),
		}
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &errs.ConnectionError{Connector: c.Name(), Location: loc.Describe(), Attempts: 1, Err: err}
	}

	var pool *pgxpool.Pool
	delay := pgOpenBaseDelay
	for attempt := 1; ; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		if attempt >= pgOpenAttempts || ctx.Err() != nil {
			return nil, &errs.ConnectionError{Connector: c.Name(), Location: loc.Describe(), Attempts: attempt, Err: err}
		}
		logger.LogWarn("postgres open failed, retrying", map[string]interface{}{
			"attempt": attempt, "delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &errs.ConnectionError{Connector: c.Name(), Location: loc.Describe(), Attempts: attempt, Err: ctx.Err()}
		}
		delay *= 2
	}

	return &postgresHandle{pool: pool, loc: loc}, nil
}

type postgresHandle struct {
	pool   *pgxpool.Pool
	loc    Location
	closed bool
}

func (h *postgresHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	query := h.loc.String("query")
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %s", pgx.Identifier{h.loc.String("table")}.Sanitize())
	}
	rows, err := h.pool.Query(ctx, query)
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "postgres", Location: query, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	ds, err := dataset.New(cols...)
	if err != nil {
		return nil, err
	}
	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &errs.ConnectorIOError{Connector: "postgres", Location: query, Op: "read", FirstRow: n, LastRow: n, Err: err}
		}
		if err := ds.AppendRow(values); err != nil {
			return nil, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.ConnectorIOError{Connector: "postgres", Location: query, Op: "read", FirstRow: 0, LastRow: n - 1, Err: err}
	}
	return ds, nil
}

func (h *postgresHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	table := h.loc.String("table")
	if table == "" {
		return &errs.ConnectorIOError{
			Connector: "postgres", Location: h.loc.Describe(), Op: "write", FirstRow: -1, LastRow: -1,
			Err: fmt.Errorf("%w: write requires 'table'", errs.ErrConfigInvalid),
		}
	}
	cols := ds.Columns()
	src := make([][]interface{}, ds.NumRows())
	for r := range src {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			row[i], _ = ds.Value(r, c)
		}
		src[r] = row
	}
	copied, err := h.pool.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(src))
	if err != nil {
		return &errs.ConnectorIOError{
			Connector: "postgres", Location: table, Op: "write",
			FirstRow: int(copied), LastRow: ds.NumRows() - 1, Err: err,
		}
	}
	logger.LogDebug("postgres write", map[string]interface{}{"table": table, "rows": copied})
	return nil
}

// Lookup runs a single-value parameterized query; used by the
// sql.lookup wrangle. It is an extended capability beyond the core
// Handle set, reached by type assertion.
func (h *postgresHandle) Lookup(ctx context.Context, query string, key interface{}) (interface{}, error) {
	var out interface{}
	err := h.pool.QueryRow(ctx, query, key).Scan(&out)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "postgres", Location: query, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	return out, nil
}

func (h *postgresHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	h.pool.Close()
	return nil
}
