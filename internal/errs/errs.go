// Package errs defines the engine's error taxonomy. Sentinel values
// are wrapped with fmt.Errorf("%w: ...") at call sites; the typed
// errors below carry the context a caller needs to diagnose a failed
// run (step position, connector location, row ranges).
package errs

import (
	"errors"
)

var (
	// Recipe / template errors
	ErrRecipeNotFound     = errors.New("recipe file not found")
	ErrRecipeParse        = errors.New("error parsing recipe")
	ErrTemplateUnresolved = errors.New("unresolved template reference")
	ErrIncludeNotFound    = errors.New("included recipe not found")

	// Validation errors
	ErrSchemaViolation = errors.New("recipe failed schema validation")
	ErrUnknownKind     = errors.New("unknown step kind")

	// Registry errors
	ErrKindNotRegistered = errors.New("step kind not registered")
	ErrDuplicateKind     = errors.New("step kind already registered")

	// Connector errors
	ErrConnectorNotFound = errors.New("connector not registered")
	ErrConnectionFailed  = errors.New("connector open failed")
	ErrConnectorRead     = errors.New("connector read failed")
	ErrConnectorWrite    = errors.New("connector write failed")
	ErrHandleClosed      = errors.New("connector handle already closed")

	// Custom function errors
	ErrFunctionFileNotFound = errors.New("custom function file not found")
	ErrFunctionNotFound     = errors.New("custom function symbol not found")
	ErrFunctionSignature    = errors.New("custom function has incompatible signature")

	// Execution errors
	ErrStepFailed   = errors.New("step execution failed")
	ErrRunCancelled = errors.New("run cancelled")

	// Dataset errors
	ErrColumnNotFound   = errors.New("column does not exist")
	ErrColumnExists     = errors.New("column already exists")
	ErrSchemaMismatch   = errors.New("dataset schemas do not match")
	ErrRowCountMismatch = errors.New("dataset row counts do not match")

	// Configuration errors
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing connector credentials")
)
