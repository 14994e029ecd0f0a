// Package errors holds the sentinel errors of the dashboard and the tagged
// error value produced at the backend boundary.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidTransition = fmt.Errorf("invalid wizard transition")
	ErrUnknownField      = fmt.Errorf("unknown field")
	ErrIndexOutOfRange   = fmt.Errorf("list index out of range")
	ErrLastListItem      = fmt.Errorf("cannot remove the last list item")
	ErrCompanyLocked     = fmt.Errorf("company already created, draft is locked")
	ErrBusy              = fmt.Errorf("submission in progress")
)

// Kind discriminates the failures a user can be shown.
type Kind int

const (
	// KindNetwork is a transport or HTTP failure without a structured body.
	KindNetwork Kind = iota + 1
	// KindValidation is a structured validation detail from create-company.
	KindValidation
	// KindPartialSubmission means the company was created but the upload failed.
	KindPartialSubmission
	// KindClientValidation is a local required-field check failure.
	KindClientValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindPartialSubmission:
		return "partial_submission"
	case KindClientValidation:
		return "client_validation"
	default:
		return "unknown"
	}
}

// Error is the single discriminated error value consumed by the wizard and the renderer.
type Error struct {
	Kind Kind
	// Field names the offending field, when the backend or the local check reported one.
	Field string
	// Message is the server-reported detail, empty when none was usable.
	Message string
	// StatusCode is the HTTP status of the backend response, zero on transport failures.
	StatusCode int
	Err        error
}

func (err *Error) Error() string {
	msg := err.Kind.String()
	if err.Field != "" {
		msg += " (" + err.Field + ")"
	}
	if err.Message != "" {
		msg += ": " + err.Message
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *Error) Unwrap() error {
	return err.Err
}

// NewNetworkError wraps a transport failure or a non-2xx response without a usable body.
func NewNetworkError(status int, cause error) *Error {
	return &Error{Kind: KindNetwork, StatusCode: status, Err: cause}
}

// NewValidationError builds the structured create-company failure.
func NewValidationError(status int, field, message string) *Error {
	return &Error{Kind: KindValidation, StatusCode: status, Field: field, Message: message}
}

// NewPartialSubmissionError marks an upload failure after a successful create.
func NewPartialSubmissionError(cause error) *Error {
	return &Error{Kind: KindPartialSubmission, Err: cause}
}

// NewClientValidationError reports a missing required field before any network call.
func NewClientValidationError(fields ...string) *Error {
	err := &Error{Kind: KindClientValidation}
	if len(fields) > 0 {
		err.Field = fields[0]
	}
	return err
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return 0
}

// As is errors.As restricted to *Error.
func As(err error) (*Error, bool) {
	var target *Error
	ok := errors.As(err, &target)
	return target, ok
}
