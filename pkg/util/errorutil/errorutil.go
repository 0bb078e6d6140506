package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeAccessDenied          = "ACCESS_DENIED"
	CodeConflict              = "CONFLICT"
	CodeInternal              = "INTERNAL_ERROR"
	CodeInvalidRole           = "INVALID_ROLE"
	CodeTransient             = "STORAGE_TRANSIENT"
	CodeStorage               = "STORAGE_FATAL"
	CodeEmptyContent          = "EMPTY_CONTENT"
	CodeBodyTooLong           = "BODY_TOO_LONG"
	CodeUnsupportedAttachment = "UNSUPPORTED_ATTACHMENT"
	CodeInvalidEmoji          = "INVALID_EMOJI"
	CodeReplyParentMissing    = "REPLY_PARENT_MISSING"
	CodeChatBanned            = "CHAT_BANNED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewInvalid reports a validation failure with a specific code.
func NewInvalid(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewAccessDenied reports that the access oracle refused the caller.
func NewAccessDenied(details map[string]any) error {
	return NewDomainError(CodeAccessDenied, "access denied", http.StatusForbidden, details)
}

// NewChatBanned reports that the caller may not post while a chat ban is active.
func NewChatBanned(reason string) error {
	details := map[string]any{}
	if reason != "" {
		details["reason"] = reason
	}
	return NewDomainError(CodeChatBanned, "banned from chat", http.StatusForbidden, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInvalidRole(role string) error {
	return NewDomainError(CodeInvalidRole, fmt.Sprintf("invalid role: %s", role), http.StatusBadRequest,
		map[string]any{"role": role})
}

// NewTransient wraps a retryable storage failure (deadlock, lock timeout, serialization).
func NewTransient(err error) error {
	return &DomainError{
		Code:       CodeTransient,
		Message:    "storage temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewStorage wraps a non-retryable storage failure.
func NewStorage(err error) error {
	return &DomainError{
		Code:       CodeStorage,
		Message:    "storage failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
