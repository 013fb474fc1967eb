package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones match their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Delivery lifecycle errors. Messages name the rule that blocked the action.
var (
	ErrTransitionNotAllowed   = New("TRANSITION_NOT_ALLOWED", http.StatusConflict, "action is not allowed from the current status")
	ErrAmbiguousScope         = New("AMBIGUOUS_SCOPE", http.StatusBadRequest, "select which video you are delivering")
	ErrNoPendingCorrections   = New("NO_PENDING_CORRECTIONS", http.StatusUnprocessableEntity, "add at least one unresolved comment before requesting corrections")
	ErrDeliveryNotEditable    = New("DELIVERY_NOT_EDITABLE", http.StatusConflict, "delivery has already been reviewed and is read-only")
	ErrVersionConflict        = New("VERSION_ALLOCATION_CONFLICT", http.StatusConflict, "another delivery was submitted at the same time, please retry")
	ErrAmbiguousAction        = New("AMBIGUOUS_ACTION", http.StatusInternalServerError, "status transition table defines the action more than once")
	ErrInvalidArtifactLocator = New("INVALID_ARTIFACT_LOCATOR", http.StatusBadRequest, "artifact url must be an absolute http(s) url")
	ErrPaymentFailed          = New("PAYMENT_FAILED", http.StatusPaymentRequired, "payment could not be completed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
