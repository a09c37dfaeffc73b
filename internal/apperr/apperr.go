package apperr

import (
	"encoding/json"
	"net/http"
)

// Error is an application error that carries the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// BadRequest covers malformed or missing input.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

// Unauthorized covers missing, invalid or expired credentials. The
// message must stay generic for credential checks so the response does
// not reveal whether the account exists.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message, nil)
}

// Conflict covers duplicate-resource failures such as an already
// registered email.
func Conflict(message string) *Error {
	return New(http.StatusConflict, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

// Write sends the error as a JSON response. Wrapped causes are never
// serialized; clients only see the status and message.
func Write(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Message,
		"code":  err.Code,
	})
}

// From converts any error into an *Error, wrapping unknown errors as
// an internal server error with a generic message.
func From(err error) *Error {
	if appErr, ok := err.(*Error); ok {
		return appErr
	}
	return Internal("Internal server error", err)
}
