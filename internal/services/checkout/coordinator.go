// Package checkout commits a session's cart as a transaction.
package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/dependencies/random"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// Checkout results for metrics
const (
	resultCommitted = "committed"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// Store is the persistence the coordinator needs
type Store interface {
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	SaveTransaction(ctx context.Context, tx *model.Transaction) error
}

// Emitter delivers an event to a session
type Emitter interface {
	Emit(s *session.Session, eventType model.EventType, payload any)
}

// Coordinator is the single all-or-nothing commit point: the cart is cleared
// only after the transaction has been persisted.
type Coordinator struct {
	registry *session.Registry
	store    Store
	bus      Emitter
	clock    clock.Clock
	random   random.Random
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New creates a Coordinator
func New(
	registry *session.Registry,
	store Store,
	bus Emitter,
	clock clock.Clock,
	random random.Random,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		registry: registry,
		store:    store,
		bus:      bus,
		clock:    clock,
		random:   random,
		metrics:  m,
		tracer:   otel.Tracer("github.com/mcoot/smartkiosk/internal/services/checkout"),
		logger:   logger.With(slog.String("component", "checkout")),
	}
}

// Checkout commits the cart of session id. Preconditions are checked in
// order: the session exists, is authenticated, and has a non-empty cart.
// If persistence fails the cart is left exactly as it was.
func (c *Coordinator) Checkout(ctx context.Context, id model.SessionID) (*model.Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "checkout", trace.WithAttributes(
		attribute.String("session.id", string(id)),
	))
	defer span.End()

	tx, err := c.checkout(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("transaction.id", string(tx.ID)),
		attribute.Float64("transaction.amount", tx.TotalAmount),
	)
	return tx, nil
}

func (c *Coordinator) checkout(ctx context.Context, id model.SessionID) (*model.Transaction, error) {
	s, ok := c.registry.Lookup(id)
	if !ok {
		c.metrics.Checkout(resultRejected)
		return nil, model.ErrSessionNotFound
	}

	s.Lock()
	defer s.Unlock()

	if s.State() != model.AuthAuthenticated {
		c.metrics.Checkout(resultRejected)
		return nil, model.ErrNotAuthenticated
	}
	cart := s.Cart()
	if !cart.Validate() {
		c.metrics.Checkout(resultRejected)
		return nil, model.ErrCartEmpty
	}

	summary := cart.Summary()
	userID := s.UserID()

	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		c.metrics.Checkout(resultFailed)
		return nil, fmt.Errorf("%w: load user %s: %v", model.ErrPersistence, userID, err)
	}

	tx := &model.Transaction{
		ID:            model.TransactionID(uuid.NewString()),
		UserID:        userID,
		UserName:      user.Name,
		Items:         summary.Lines,
		TotalQuantity: summary.TotalQuantity,
		TotalAmount:   summary.TotalAmount,
		ReceiptCode:   random.ReceiptCode(c.random),
		CreatedAt:     c.clock.Now(),
	}

	if err := c.store.SaveTransaction(ctx, tx); err != nil {
		c.metrics.Checkout(resultFailed)
		c.logger.Error("failed to persist transaction, cart preserved",
			slog.String("session_id", string(id)),
			slog.String("user_id", string(userID)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: save transaction: %v", model.ErrPersistence, err)
	}

	cart.Clear()
	c.metrics.Checkout(resultCommitted)
	c.logger.Info("checkout committed",
		slog.String("session_id", string(id)),
		slog.String("transaction_id", string(tx.ID)),
		slog.Int("total_quantity", tx.TotalQuantity),
		slog.Float64("total_amount", tx.TotalAmount),
	)
	c.bus.Emit(s, model.EventCartUpdated, model.CartUpdatedPayload{Cart: cart.Summary()})
	return tx, nil
}
