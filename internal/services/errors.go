package services

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures
type Kind string

const (
	KindNormalization      Kind = "normalization"
	KindClassification     Kind = "classification"
	KindMissingAnnotations Kind = "missing_annotations"
	KindInconclusive       Kind = "inconclusive"
	KindInvalidCoordinate  Kind = "invalid_coordinate"
)

// Error is the typed error returned by every pipeline stage
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an error without a cause
func NewError(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// WrapError attaches a kind to err. Already typed errors are returned as is.
func WrapError(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind reports whether the first typed error in err's chain has the given kind
func IsKind(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}
