package engine

import (
	"encoding/json"
	"time"
)

// Step outcome values recorded in the run summary.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Record is the outcome of one executed step, in declaration order.
type Record struct {
	Phase       string        `json:"phase"` // "read", "wrangles" or "write"
	StepIndex   int           `json:"step_index"`
	Kind        string        `json:"kind"`
	Status      string        `json:"status"`
	Duration    time.Duration `json:"duration_ns"`
	RowsSkipped int           `json:"rows_skipped,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Summary is the report of one pipeline run: final state, per-step
// records, and row counts. The engine hands it out only after the run
// reaches a terminal state; callers must treat it as immutable.
type Summary struct {
	RunID       string        `json:"run_id"`
	State       State         `json:"state"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	RowsRead    int           `json:"rows_read"`
	RowsWritten int           `json:"rows_written"`
	Records     []Record      `json:"steps"`
	Error       string        `json:"error,omitempty"`
}

// Succeeded reports whether the run reached Completed.
func (s *Summary) Succeeded() bool { return s.State == StateCompleted }

// JSON renders the summary for machine consumption.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func (s *Summary) record(phase string, index int, kind, status string, start time.Time, skipped int, err error) {
	r := Record{
		Phase:       phase,
		StepIndex:   index,
		Kind:        kind,
		Status:      status,
		Duration:    time.Since(start),
		RowsSkipped: skipped,
	}
	if err != nil {
		r.Error = err.Error()
	}
	s.Records = append(s.Records, r)
}
