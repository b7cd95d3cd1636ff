package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable error field of an API error body.
type ErrorCode string

const (
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeRateLimit            ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeUnsupportedMediaType ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway           ErrorCode = "BAD_GATEWAY"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidInput:         http.StatusBadRequest,
	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeUnauthorized:         http.StatusUnauthorized,
	ErrCodeForbidden:            http.StatusForbidden,
	ErrCodeConflict:             http.StatusConflict,
	ErrCodeRateLimit:            http.StatusTooManyRequests,
	ErrCodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeUnsupportedMediaType: http.StatusUnsupportedMediaType,
	ErrCodeInternal:             http.StatusInternalServerError,
	ErrCodeServiceUnavailable:   http.StatusServiceUnavailable,
	ErrCodeBadGateway:           http.StatusBadGateway,
}

// Status is the HTTP status answered for code. Unknown codes are 500.
func (c ErrorCode) Status() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError is an error that knows how it is rendered to API clients.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	// Details is sent to the client verbatim, so it must never carry
	// secrets or internal identifiers.
	Details map[string]interface{}
	// Key names a translated message in the i18n catalog. Message is the
	// fallback when no translation exists.
	Key string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithKey attaches an i18n message key.
func (e *AppError) WithKey(key string) *AppError {
	e.Key = key
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: code.Status()}
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, resource+" not found")
}

func NewUnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NewConflictError(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

func NewPayloadTooLargeError(limit int64) *AppError {
	return New(ErrCodePayloadTooLarge, fmt.Sprintf("payload exceeds %d bytes", limit)).
		WithDetail("limit_bytes", limit)
}

func NewInternalError(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func NewServiceUnavailableError(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message)
}

// GetAppError returns the first AppError in err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
