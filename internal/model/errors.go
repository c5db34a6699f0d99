package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by the pipeline wraps exactly one of these
// so callers can classify a failure with errors.Is.
var (
	ErrDecode      = errors.New("decode error")
	ErrInference   = errors.New("inference error")
	ErrValidation  = errors.New("validation error")
	ErrPersistence = errors.New("persistence error")
	ErrConnection  = errors.New("connection error")
)

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound      = fmt.Errorf("%w: session not found", ErrValidation)
	ErrSessionExists        = fmt.Errorf("%w: session already exists", ErrValidation)
	ErrNotAuthenticated     = fmt.Errorf("%w: session is not authenticated", ErrValidation)
	ErrAlreadyAuthenticated = fmt.Errorf("%w: session is already authenticated", ErrValidation)

	// Cart errors
	ErrCartEmpty = fmt.Errorf("%w: cart is empty", ErrValidation)

	// Registration errors
	ErrNoPendingFace   = fmt.Errorf("%w: no pending face for session", ErrValidation)
	ErrContactExists   = fmt.Errorf("%w: contact is already registered", ErrValidation)
	ErrInvalidName     = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidContact  = fmt.Errorf("%w: contact is required", ErrValidation)
	ErrInvalidBirthday = fmt.Errorf("%w: birthday must be YYYY-MM-DD", ErrValidation)

	// Lookup errors
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrValidation)
	ErrProductNotFound     = fmt.Errorf("%w: product not found", ErrValidation)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", ErrValidation)

	// Frame errors
	ErrEmptyFrame = fmt.Errorf("%w: empty frame payload", ErrDecode)

	// Connection errors
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrConnection)
	ErrSendBufferFull   = fmt.Errorf("%w: send buffer full", ErrConnection)
)
