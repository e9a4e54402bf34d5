// Package apperr defines the error kinds shared by the domain services and the
// mapping of those kinds onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation marks malformed or missing input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing entity or an empty candidate set (e.g. a full department).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that is well-formed but not allowed in the current state.
	ErrConflict = errors.New("conflict")
	// ErrStoreUnavailable marks a failure of the backing relational store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Validation returns an error of kind ErrValidation with the given message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf returns an error of kind ErrConflict.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf returns an error of kind ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Store wraps a driver error as ErrStoreUnavailable. A nil error stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// Kind reports which of the sentinel kinds err belongs to, or nil for an
// unclassified error.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrStoreUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Status maps an error to the HTTP status the serving layer should answer with.
func Status(err error) int {
	switch Kind(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// HTTP converts err into an *echo.HTTPError. Store failures and unclassified
// errors are reported with a generic message so driver details don't leak.
func HTTP(err error) *echo.HTTPError {
	code := Status(err)
	switch code {
	case http.StatusServiceUnavailable:
		return echo.NewHTTPError(code, "database unavailable")
	case http.StatusInternalServerError:
		return echo.NewHTTPError(code, "internal server error")
	}
	return echo.NewHTTPError(code, err.Error())
}
