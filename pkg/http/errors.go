package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in the body of non-validation failures.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeUnavailable = "ERR_SERVICE_UNAVAILABLE"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError is an error with a client-facing code and HTTP status. Err is the
// cause; it is logged but never serialized.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError returns a copy of e wrapping err.
func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, message)
}

func NotFoundError(message string) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, message)
}

// ServiceUnavailableError signals a capability that is temporarily missing,
// such as a model that failed to load.
func ServiceUnavailableError(message string) *AppError {
	return newAppError(http.StatusServiceUnavailable, CodeUnavailable, message)
}

func InternalError(message string) *AppError {
	return newAppError(http.StatusInternalServerError, CodeInternal, message)
}
