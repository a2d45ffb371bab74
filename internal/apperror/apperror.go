// Package apperror defines the error kinds surfaced to API callers.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the category an error is reported under
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is a caller-facing error. Field names the offending input, when there is one.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches copies made by WithCause and WithDetails against their sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Field == t.Field && e.Message == t.Message
}

// ErrorKind implements Kinded
func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// ErrorDetails implements Detailed
func (e *Error) ErrorDetails() map[string]interface{} {
	return e.Details
}

// WithCause returns a copy of e wrapping cause
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of e carrying details
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Kinded is implemented by errors that know which Kind they belong to
type Kinded interface {
	ErrorKind() Kind
}

// Detailed is implemented by errors that carry structured details for the caller
type Detailed interface {
	ErrorDetails() map[string]interface{}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf returns the kind of the first Kinded error in err's chain, or KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// Is reports whether err is of the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FieldOf returns the offending field of err, if it names one
func FieldOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// DetailsOf returns structured details carried anywhere in err's chain
func DetailsOf(err error) map[string]interface{} {
	var d Detailed
	if errors.As(err, &d) {
		return d.ErrorDetails()
	}
	return nil
}
