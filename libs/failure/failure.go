// Package failure carries HTTP status codes alongside error messages so handlers can map
// domain errors to responses without type switches.
package failure

import (
	"errors"
	"net/http"
)

// Failure is an error with the HTTP status code it should surface as.
type Failure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var ErrForbidden = &Failure{Code: http.StatusForbidden, Message: "you don't have the required permissions"}

func (e *Failure) Error() string {
	return e.Message
}

// BadRequest wraps err as a 400. A nil err stays nil.
func BadRequest(err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Code: http.StatusBadRequest, Message: err.Error()}
}

func BadRequestFromString(msg string) error {
	return &Failure{Code: http.StatusBadRequest, Message: msg}
}

func Unauthorized(msg string) error {
	return &Failure{Code: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) error {
	return &Failure{Code: http.StatusForbidden, Message: msg}
}

func NotFound(entityName string) error {
	return &Failure{Code: http.StatusNotFound, Message: entityName + " not found"}
}

func Conflict(msg string) error {
	return &Failure{Code: http.StatusConflict, Message: msg}
}

func Unprocessable(msg string) error {
	return &Failure{Code: http.StatusUnprocessableEntity, Message: msg}
}

// BadGateway reports a failing upstream dependency such as an SMS provider.
func BadGateway(msg string) error {
	return &Failure{Code: http.StatusBadGateway, Message: msg}
}

// GetCode returns the status code of the first Failure in err's chain, or 500.
func GetCode(err error) int {
	var fail *Failure
	if errors.As(err, &fail) {
		return fail.Code
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries a Failure with the given code.
func Is(err error, code int) bool {
	var fail *Failure
	return errors.As(err, &fail) && fail.Code == code
}
