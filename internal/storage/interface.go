package storage

import (
	"context"
	"time"

	"github.com/mcoot/smartkiosk/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	// CreateUser fails with model.ErrContactExists if another user already
	// holds the contact; the check and insert are atomic.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByContact(ctx context.Context, contact string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	TouchUserLastVisit(ctx context.Context, id model.UserID, at time.Time) error

	// Product operations
	SaveProduct(ctx context.Context, product *model.Product) error
	ListProducts(ctx context.Context) ([]*model.Product, error)

	// Transaction operations (append only)
	SaveTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, id model.TransactionID) (*model.Transaction, error)
	// ListTransactionsForUser returns transactions newest first
	ListTransactionsForUser(ctx context.Context, userID model.UserID) ([]*model.Transaction, error)

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
