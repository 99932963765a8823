// Package errors carries the typed error codes shared by the HTTP surface,
// the inbound pipeline and the background workers.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeQuota         Code = "QUOTA_EXCEEDED"
	CodeSignature     Code = "SIGNATURE_INVALID"
)

// Metadata describes how a code surfaces to API clients and retry loops.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets structured details reach the client.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

const (
	retry   = 1 << iota
	details
	expose
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retry != 0,
		DetailsAllowed: flags&details != 0,
		ExposeMessage:  flags&expose != 0,
	}
}

var codeTable = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", details|expose),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", expose),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", expose),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", expose),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", expose),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", details|expose),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", details|expose),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", expose),
	CodeQuota:         meta(http.StatusPaymentRequired, "usage quota exhausted", details|expose),
	CodeSignature:     meta(http.StatusBadRequest, "invalid signature", 0),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retry|details),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retry),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := codeTable[code]; ok {
		return m
	}
	return codeTable[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code to cause. A nil cause yields a plain New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// PublicMessage is the client-facing text for e.
func (e *Error) PublicMessage() string {
	m := MetadataFor(e.Code())
	if m.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return m.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Coerce returns err's typed form, wrapping untyped errors as CodeInternal.
func Coerce(err error) *Error {
	if err == nil {
		return New(CodeInternal, "unknown error")
	}
	if typed := As(err); typed != nil {
		return typed
	}
	return Wrap(CodeInternal, err, "unexpected error")
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsRetryable treats untyped errors as retryable.
func IsRetryable(err error) bool {
	switch typed := As(err); {
	case err == nil:
		return false
	case typed == nil:
		return true
	default:
		return MetadataFor(typed.Code()).Retryable
	}
}
