package http

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the error body clients receive. Status and Err stay server
// side.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Field:   field,
		Message: message,
		Status:  status,
	}
}

// WithParams merges params into the error's params.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	for k, v := range params {
		e.WithParam(k, v)
	}
	return e
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError attaches the cause for logging.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

// RateLimitedError tells the caller how long to back off.
func RateLimitedError(retryAfter time.Duration) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", "too many requests, retry later", http.StatusTooManyRequests).
		WithParam("retry_after_ms", retryAfter.Milliseconds())
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}
