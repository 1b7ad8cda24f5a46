package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

// InferenceConnector talks to a model-hosting API. Writing a dataset
// trains the named model; the Predict capability (used by the
// classify wrangle) runs batched inference. Retry policy lives in
// the resty client: transient failures are retried with backoff and
// exhaustion surfaces as one terminal error.
type InferenceConnector struct{}

// NewInferenceConnector returns the inference connector.
func NewInferenceConnector() *InferenceConnector { return &InferenceConnector{} }

func (c *InferenceConnector) Name() string { return "inference" }

func (c *InferenceConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	endpoint, _ := creds["endpoint"].(string)
	apiKey, _ := creds["api_key"].(string)
	if endpoint == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: inference endpoint", errs.ErrMissingCredentials),
		}
	}
	model := loc.String("model")
	if model == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: inference connector requires 'model'", errs.ErrConfigInvalid),
		}
	}

	timeout := 30
	if t, ok := creds["timeout"].(int); ok && t > 0 {
		timeout = t
	}
	retries := 3
	if r, ok := creds["retries"].(int); ok && r >= 0 {
		retries = r
	}

	client := resty.New()
	client.SetBaseURL(endpoint)
	client.SetTimeout(time.Duration(timeout) * time.Second)
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	// Probe the model so auth and endpoint failures are terminal
	// here rather than surfacing per-row later.
	resp, err := client.R().SetContext(ctx).Get("/models/" + model)
	if err != nil {
		return nil, &errs.ConnectionError{Connector: c.Name(), Location: model, Attempts: retries + 1, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: model, Attempts: retries + 1,
			Err: fmt.Errorf("model probe returned HTTP %d", resp.StatusCode()),
		}
	}

	return &inferenceHandle{client: client, model: model}, nil
}

type inferenceHandle struct {
	client *resty.Client
	model  string
	closed bool
}

func (h *inferenceHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	return nil, &errs.ConnectorIOError{
		Connector: "inference", Location: h.model, Op: "read", FirstRow: -1, LastRow: -1,
		Err: fmt.Errorf("inference connector is write/predict only"),
	}
}

// Write trains the model with the dataset's rows.
func (h *inferenceHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	rows := make([]map[string]interface{}, ds.NumRows())
	for r := range rows {
		rows[r] = ds.RowMap(r)
	}
	body := map[string]interface{}{
		"columns": ds.Columns(),
		"rows":    rows,
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/models/" + h.model + "/train")
	if err != nil {
		return &errs.ConnectorIOError{Connector: "inference", Location: h.model, Op: "write", FirstRow: 0, LastRow: ds.NumRows() - 1, Err: err}
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return &errs.ConnectorIOError{
			Connector: "inference", Location: h.model, Op: "write", FirstRow: 0, LastRow: ds.NumRows() - 1,
			Err: fmt.Errorf("training returned HTTP %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	logger.LogDebug("inference training submitted", map[string]interface{}{"model": h.model, "rows": ds.NumRows()})
	return nil
}

// Predict classifies a batch of inputs, returning one prediction per
// input in order. Extended capability beyond the core Handle set.
func (h *inferenceHandle) Predict(ctx context.Context, inputs []string) ([]string, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{"inputs": inputs}).
		Post("/models/" + h.model + "/classify")
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "inference", Location: h.model, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &errs.ConnectorIOError{
			Connector: "inference", Location: h.model, Op: "read", FirstRow: -1, LastRow: -1,
			Err: fmt.Errorf("classify returned HTTP %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	var result struct {
		Predictions []string `json:"predictions"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &errs.ConnectorIOError{Connector: "inference", Location: h.model, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	if len(result.Predictions) != len(inputs) {
		return nil, &errs.ConnectorIOError{
			Connector: "inference", Location: h.model, Op: "read", FirstRow: -1, LastRow: -1,
			Err: fmt.Errorf("expected %d predictions, got %d", len(inputs), len(result.Predictions)),
		}
	}
	return result.Predictions, nil
}

func (h *inferenceHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	return nil
}
