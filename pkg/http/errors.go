package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in the envelope. Validation failures use ERR_<TAG>.
const (
	CodeNotFound   = "ERR_NOT_FOUND"
	CodeBadRequest = "ERR_BAD_REQUEST"
	CodeInternal   = "ERR_INTERNAL"
)

// AppError is an error a handler wants rendered with a specific status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
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

// Wrap attaches the underlying cause; it is logged, never rendered.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, fmt.Sprintf(format, a...))
}

func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, message)
}

// FieldError is a 400 pinned to one request field.
func FieldError(field, message string) *AppError {
	e := BadRequestError(message)
	e.Field = field
	return e
}
