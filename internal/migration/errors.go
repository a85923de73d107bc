package migration

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes generation errors
type ErrorCode string

const (
	// ErrCodeEmptyDiff is reserved. An empty diff yields an empty migration, not an error.
	ErrCodeEmptyDiff ErrorCode = "EMPTY_DIFF"

	// ErrCodeUnsupported indicates a diff element with no DDL form, such as an unknown constraint kind
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeInvalidElement indicates a malformed diff element, such as a blank name
	ErrCodeInvalidElement ErrorCode = "INVALID_ELEMENT"
)

// Error is returned when a diff cannot be compiled. No partial migration accompanies it.
type Error struct {
	Code    ErrorCode
	Message string
	Object  string
}

func (e *Error) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Object)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func unsupported(object, format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...), Object: object}
}

func invalidElement(object, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidElement, Message: fmt.Sprintf(format, args...), Object: object}
}

// IsUnsupported returns true if the error is an unsupported operation error
func IsUnsupported(err error) bool {
	return hasCode(err, ErrCodeUnsupported)
}

// IsInvalidElement returns true if the error is an invalid element error
func IsInvalidElement(err error) bool {
	return hasCode(err, ErrCodeInvalidElement)
}

// IsEmptyDiff returns true if the error is an empty diff error
func IsEmptyDiff(err error) bool {
	return hasCode(err, ErrCodeEmptyDiff)
}

func hasCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}
