// Package shared holds the error taxonomy common to all inventory domains.
// Services return these sentinels (usually wrapped with fmt.Errorf and %w)
// and handlers translate them to HTTP status codes with HTTPStatus.
package shared

import (
	"errors"
	"net/http"
)

var (
	// ErrPermissionDenied means the principal's role or location does not
	// authorize the requested operation. Never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInsufficientStock means the requested quantity exceeds what is
	// available right now. Recoverable: the caller may retry after restocking.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNotFound means a referenced record does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was rejected before any mutation.
	ErrValidation = errors.New("validation failed")
)

// HTTPStatus maps a service error to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
