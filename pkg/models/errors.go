package models

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of validation or calculation failure.
type ErrorKind string

const (
	KindInvalidDateRange           ErrorKind = "InvalidDateRange"
	KindMissingRequiredField       ErrorKind = "MissingRequiredField"
	KindUnparsableAmount           ErrorKind = "UnparsableAmount"
	KindUnparsableDate             ErrorKind = "UnparsableDate"
	KindUnknownAccountReference    ErrorKind = "UnknownAccountReference"
	KindInsufficientAccountBalance ErrorKind = "InsufficientAccountBalance"
	KindUnknownDebtReference       ErrorKind = "UnknownDebtReference"
	KindDuplicateDebtReference     ErrorKind = "DuplicateDebtReference"
	KindUnrecognizedStatus         ErrorKind = "UnrecognizedStatus"
	KindPersistenceFailure         ErrorKind = "PersistenceFailure"
)

// Error implements error so a bare kind can be used as a sentinel.
func (k ErrorKind) Error() string { return string(k) }

var (
	ErrInvalidDateRange           error = KindInvalidDateRange
	ErrMissingRequiredField       error = KindMissingRequiredField
	ErrUnparsableAmount           error = KindUnparsableAmount
	ErrUnparsableDate             error = KindUnparsableDate
	ErrUnknownAccountReference    error = KindUnknownAccountReference
	ErrInsufficientAccountBalance error = KindInsufficientAccountBalance
	ErrUnknownDebtReference       error = KindUnknownDebtReference
	ErrDuplicateDebtReference     error = KindDuplicateDebtReference
)

// ValidationError carries a kind plus a human readable detail.
// errors.Is(err, ErrUnparsableAmount) matches on the kind.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(kind ErrorKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind of err, or "" when err is not a validation failure.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// MessageOf returns the detail carried by a validation error.
func MessageOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
