package models

import (
	"context"
	"errors"
	"fmt"
)

// Domain sentinel errors.
var (
	ErrNotFound   = errors.New("requested item not found")
	ErrConflict   = errors.New("item already exists or conflict")
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation failed")
)

// ErrorKind is the error taxonomy every stage maps its failures into.
type ErrorKind string

const (
	ErrKindNetwork    ErrorKind = "NETWORK_ERROR"
	ErrKindUpstream   ErrorKind = "UPSTREAM_ERROR"
	ErrKindValidation ErrorKind = "VALIDATION_ERROR"
	ErrKindTimeout    ErrorKind = "TIMEOUT"
	ErrKindInternal   ErrorKind = "INTERNAL_ERROR"
	ErrKindUnknown    ErrorKind = "UNKNOWN_ERROR"
)

// Terminal error types recorded on a failed job.
const (
	ErrTypeLLMTimeout   = "LLM_TIMEOUT"
	ErrTypeGateError    = "GATE_ERROR"
	ErrTypeSearchFailed = "SEARCH_FAILED"
)

// AppError is a typed pipeline error. The message is user-safe; anything
// sensitive stays in the wrapped cause, which is logged but never surfaced.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	TraceID string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError wraps cause with a taxonomy kind and a user-safe message.
func NewAppError(kind ErrorKind, code, message string, cause error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: cause}
}

// Retryable reports whether a single retry at the stage boundary is allowed
// for this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindNetwork, ErrKindUpstream, ErrKindTimeout:
		return true
	}
	return false
}

// ClassifyError maps an arbitrary error to a taxonomy kind. Deadline and
// cancellation errors are timeouts; typed AppErrors keep their kind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrKindUnknown
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindTimeout
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrBadRequest) {
		return ErrKindValidation
	}
	return ErrKindUnknown
}

// TerminalErrorType maps an error kind to the errorType recorded on the job.
func TerminalErrorType(kind ErrorKind) string {
	switch kind {
	case ErrKindTimeout:
		return ErrTypeLLMTimeout
	case ErrKindValidation:
		return ErrTypeGateError
	default:
		return ErrTypeSearchFailed
	}
}
