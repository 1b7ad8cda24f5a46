package errs

import (
	"fmt"
	"strings"
)

// Violation describes one schema rule broken by one step. The
// validator collects every violation in a recipe before reporting,
// so positions are always relative to the declared step order.
type Violation struct {
	Section string // "read", "wrangles" or "write"
	Index   int    // zero-based position within the section
	Kind    string
	Rule    string // "unknown_kind", "missing_key", "unknown_key", "wrong_type"
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s[%d] (%s): %s", v.Section, v.Index, v.Kind, v.Message)
}

// ValidationError aggregates every violation found in one pass.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrSchemaViolation }

// TemplateError reports an unresolved variable or missing include.
type TemplateError struct {
	Reference string // variable name or included file path
	IsInclude bool
}

func (e *TemplateError) Error() string {
	if e.IsInclude {
		return fmt.Sprintf("included recipe %q could not be resolved", e.Reference)
	}
	return fmt.Sprintf("variable %q is not defined", e.Reference)
}

func (e *TemplateError) Unwrap() error {
	if e.IsInclude {
		return ErrIncludeNotFound
	}
	return ErrTemplateUnresolved
}

// ConnectionError is the terminal result of a failed connector open,
// after the connector's own retry policy has been exhausted.
type ConnectionError struct {
	Connector string
	Location  string
	Attempts  int
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: open %q failed after %d attempt(s): %v", e.Connector, e.Location, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return ErrConnectionFailed }

// ConnectorIOError reports a read or write failure on an established
// connection. FirstRow/LastRow bound the rows affected when the
// failure happened partway through; both are -1 when unknown.
type ConnectorIOError struct {
	Connector string
	Location  string
	Op        string // "read" or "write"
	FirstRow  int
	LastRow   int
	Err       error
}

func (e *ConnectorIOError) Error() string {
	if e.FirstRow >= 0 {
		return fmt.Sprintf("%s: %s %q failed (rows %d-%d): %v", e.Connector, e.Op, e.Location, e.FirstRow, e.LastRow, e.Err)
	}
	return fmt.Sprintf("%s: %s %q failed: %v", e.Connector, e.Op, e.Location, e.Err)
}

func (e *ConnectorIOError) Unwrap() error {
	if e.Op == "write" {
		return ErrConnectorWrite
	}
	return ErrConnectorRead
}

// CustomFunctionError reports a custom function that could not be
// located, looked up, or matched to its declared signature class.
type CustomFunctionError struct {
	File   string
	Symbol string
	Reason error
}

func (e *CustomFunctionError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("custom functions %q: %v", e.File, e.Reason)
	}
	return fmt.Sprintf("custom function %q in %q: %v", e.Symbol, e.File, e.Reason)
}

func (e *CustomFunctionError) Unwrap() error { return e.Reason }

// StepError reports a transformation step that failed during
// application. Row is -1 when the failure was not row-scoped.
type StepError struct {
	Index int
	Kind  string
	Row   int
	Err   error
}

func (e *StepError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("step %d (%s) failed on row %d: %v", e.Index, e.Kind, e.Row, e.Err)
	}
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return ErrStepFailed }
