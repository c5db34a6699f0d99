package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mcoot/smartkiosk/internal/api/apierr"
	"github.com/mcoot/smartkiosk/internal/model"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// storageError classifies a raw backend failure as a persistence error,
// leaving lookup misses alone
func storageError(err error) error {
	if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrPersistence, err)
}
