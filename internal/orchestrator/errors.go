package orchestrator

import "errors"

// Error classes used by the CLI to choose an exit code. ErrConfig lives in
// the config package.
var (
	// ErrInput marks a missing, unreadable or schema-invalid input artifact
	ErrInput = errors.New("input error")
	// ErrBackend marks a model call that failed or returned unusable output
	ErrBackend = errors.New("model service error")
	// ErrPartialFailure marks a stage that wrote output but lost some batches
	ErrPartialFailure = errors.New("partial failure")
)
