package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeAdminDisabled        = "ADMIN_DISABLED"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSessionExists        = "SESSION_EXISTS"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeCartEmpty            = "CART_EMPTY"
	CodeNoPendingFace        = "NO_PENDING_FACE"
	CodeContactExists        = "CONTACT_EXISTS"
	CodeInvalidName          = "INVALID_NAME"
	CodeInvalidContact       = "INVALID_CONTACT"
	CodeInvalidBirthday      = "INVALID_BIRTHDAY"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeInferenceFailed      = "INFERENCE_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrSessionExists):
		return &httpError{http.StatusConflict, APIError{CodeSessionExists, "Session is already connected"}}
	case errors.Is(err, model.ErrNotAuthenticated):
		return &httpError{http.StatusConflict, APIError{CodeNotAuthenticated, "Session is not authenticated"}}
	case errors.Is(err, model.ErrAlreadyAuthenticated):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyAuthenticated, "Session is already authenticated"}}
	case errors.Is(err, model.ErrCartEmpty):
		return &httpError{http.StatusConflict, APIError{CodeCartEmpty, "Cart is empty"}}
	case errors.Is(err, model.ErrNoPendingFace):
		return &httpError{http.StatusConflict, APIError{CodeNoPendingFace, "No face captured for this session"}}
	case errors.Is(err, model.ErrContactExists):
		return &httpError{http.StatusConflict, APIError{CodeContactExists, "Phone number is already registered"}}
	case errors.Is(err, model.ErrInvalidName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidName, "Name is required"}}
	case errors.Is(err, model.ErrInvalidContact):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidContact, "Phone number is required"}}
	case errors.Is(err, model.ErrInvalidBirthday):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidBirthday, "Birthday must be YYYY-MM-DD"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrProductNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeProductNotFound, "Product not found"}}
	case errors.Is(err, model.ErrTransactionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeTransactionNotFound, "Transaction not found"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid admin key"}}
	case errors.Is(err, auth.ErrAdminDisabled):
		return &httpError{http.StatusForbidden, APIError{CodeAdminDisabled, "Admin access is not configured"}}

	// Map error kinds
	case errors.Is(err, model.ErrValidation):
		return &httpError{http.StatusBadRequest, APIError{CodeValidationFailed, err.Error()}}
	case errors.Is(err, model.ErrPersistence):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStorageUnavailable, "Storage is unavailable"}}
	case errors.Is(err, model.ErrInference):
		return &httpError{http.StatusBadGateway, APIError{CodeInferenceFailed, "Inference backend failed"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
