package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures so callers can distinguish
// "no data" from "transient failure" from "invalid input".
type ErrorKind string

const (
	// ErrKindDataUnavailable: warehouse connection or query failed.
	// Training aborts the whole run; nothing is persisted.
	ErrKindDataUnavailable ErrorKind = "DATA_UNAVAILABLE"

	// ErrKindCandidateFit: one classifier failed to fit or
	// cross-validate. Recorded with score 0 and excluded from
	// selection; never aborts the bank.
	ErrKindCandidateFit ErrorKind = "CANDIDATE_FIT_FAILURE"

	// ErrKindArtifactLoad: a required artifact file is missing or
	// corrupt at service start. Fatal; the service must not serve.
	ErrKindArtifactLoad ErrorKind = "ARTIFACT_LOAD_FAILURE"

	// ErrKindInvalidInput: malformed or out-of-range request payload.
	// Rejected per request.
	ErrKindInvalidInput ErrorKind = "INFERENCE_INPUT_INVALID"

	// ErrKindPrediction: unexpected error during scaling or inference
	// for a specific request. Request-scoped; loaded artifacts remain
	// usable.
	ErrKindPrediction ErrorKind = "PREDICTION_FAILURE"
)

// PipelineError carries an error kind so the propagation policy of
// each failure class can be enforced by the caller.
type PipelineError struct {
	Kind    ErrorKind
	Op      string
	Err     error
	Message string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps err with a kind and the failing operation.
// message is used when there is no underlying cause.
func NewPipelineError(kind ErrorKind, op string, err error, message string) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err, Message: message}
}

// ErrorKindOf extracts the kind from an error chain, or "" when the
// error is not a PipelineError.
func ErrorKindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Sentinel errors shared across packages.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidMode       = errors.New("invalid model mode")
	ErrBundleNotLoaded   = errors.New("artifact bundle not loaded")
	ErrInvalidTransition = errors.New("invalid pipeline state transition")
	ErrNoCandidates      = errors.New("no usable candidate models")
)

// ValidationError represents a per-field request validation failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}
