package services

import (
	"errors"
	"net/http"
)

// Failure kinds. Test with errors.Is.
var (
	ErrSelfRequest = errors.New("self request")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrInvalid     = errors.New("invalid")
)

// RequestError is a caller-facing failure: a kind plus the message shown to
// the user.
type RequestError struct {
	Kind    error
	Message string
}

func (e *RequestError) Error() string { return e.Message }
func (e *RequestError) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &RequestError{Kind: kind, Message: msg}
}

// HTTPStatus maps err to a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrSelfRequest), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Outcome is the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSelfRequest):
		return "self_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	}
	return "error"
}

// UserMessage is the text to return for err. Internal errors are not leaked.
func UserMessage(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	return "Internal server error"
}
