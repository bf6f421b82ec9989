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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Enrollment and access-control errors. ACCESS_DENIED carries the
// state-specific message from the access resolver; NO_ENROLLMENT is kept
// distinct so routes preserve the 403 vs 404 distinction.
var (
	ErrAccessDenied      = New("ACCESS_DENIED", http.StatusForbidden, "access denied")
	ErrNoEnrollment      = New("NO_ENROLLMENT", http.StatusNotFound, "no enrollment found")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "invalid enrollment transition")
	ErrDocumentsRequired = New("DOCUMENTS_REQUIRED", http.StatusForbidden, "required documents not verified")
)

// License entitlement errors. Distinct codes drive distinct user-facing
// remediation: renew vs contact support vs dispute resolution.
var (
	ErrLicenseMissing    = New("LICENSE_MISSING", http.StatusPaymentRequired, "no license found for tenant")
	ErrLicenseSuspended  = New("LICENSE_SUSPENDED", http.StatusPaymentRequired, "license is suspended")
	ErrLicenseExpired    = New("LICENSE_EXPIRED", http.StatusPaymentRequired, "license has expired")
	ErrLicenseRevoked    = New("LICENSE_REVOKED", http.StatusForbidden, "license has been revoked")
	ErrFeatureNotEnabled = New("FEATURE_NOT_ENABLED", http.StatusForbidden, "feature is not enabled for this license")
	ErrLimitExceeded     = New("LIMIT_EXCEEDED", http.StatusForbidden, "license limit exceeded")
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

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
