package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrInsufficientStock, http.StatusConflict},
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
		{nil, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatus_WrappedErrors(t *testing.T) {
	err := fmt.Errorf("medication aspirin: %w", ErrInsufficientStock)
	if got := HTTPStatus(err); got != http.StatusConflict {
		t.Errorf("HTTPStatus(wrapped) = %d, want %d", got, http.StatusConflict)
	}
}
