package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorUpstreamUnavailable marks failures of optional collaborators
// (cache, embedding, text generation). Callers degrade instead of failing
// the parent operation.
var ErrorUpstreamUnavailable = errors.New("upstream unavailable")

// ErrorConflict marks writes that would overwrite a human review decision.
var ErrorConflict = errors.New("conflict")

// ValidationError carries the offending field so handlers can surface it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func NewConflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrorConflict, fmt.Sprintf(format, args...))
}

func NewUpstreamError(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrorUpstreamUnavailable, service, err)
}
