package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// Enroller adds a registered identity to the face index
type Enroller interface {
	Add(id model.UserID, embedding []float64)
}

// RegisterRequest carries the shopper details collected by the kiosk
type RegisterRequest struct {
	SessionID model.SessionID
	Name      string
	Contact   string
	Birthday  string // optional, YYYY-MM-DD
}

// Registrar binds a session's pending face to a new user
type Registrar struct {
	registry *session.Registry
	users    storage.Storage
	index    Enroller
	bus      Emitter
	clock    clock.Clock
	logger   *slog.Logger
}

// NewRegistrar creates a Registrar
func NewRegistrar(
	registry *session.Registry,
	users storage.Storage,
	index Enroller,
	bus Emitter,
	clock clock.Clock,
	logger *slog.Logger,
) *Registrar {
	return &Registrar{
		registry: registry,
		users:    users,
		index:    index,
		bus:      bus,
		clock:    clock,
		logger:   logger.With(slog.String("component", "registrar")),
	}
}

// Register creates a user from the session's pending face and
// authenticates the session. No state changes on any error.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	s, ok := r.registry.Lookup(req.SessionID)
	if !ok {
		return nil, model.ErrSessionNotFound
	}

	s.Lock()
	defer s.Unlock()

	if s.State() == model.AuthAuthenticated {
		return nil, model.ErrAlreadyAuthenticated
	}
	pending := s.PendingFace()
	if pending == nil {
		return nil, model.ErrNoPendingFace
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.ErrInvalidName
	}
	contact := strings.TrimSpace(req.Contact)
	if contact == "" {
		return nil, model.ErrInvalidContact
	}
	var birthday *time.Time
	if b := strings.TrimSpace(req.Birthday); b != "" {
		t, err := time.Parse(time.DateOnly, b)
		if err != nil {
			return nil, model.ErrInvalidBirthday
		}
		birthday = &t
	}

	// CreateUser still enforces uniqueness atomically
	switch _, err := r.users.GetUserByContact(ctx, contact); {
	case err == nil:
		return nil, model.ErrContactExists
	case !errors.Is(err, model.ErrUserNotFound):
		return nil, fmt.Errorf("%w: look up contact: %v", model.ErrPersistence, err)
	}

	now := r.clock.Now()
	user := &model.User{
		ID:        model.UserID(uuid.NewString()),
		Name:      name,
		Contact:   contact,
		Birthday:  birthday,
		Embedding: pending.Embedding,
		FaceImage: pending.Image,
		CreatedAt: now,
		LastVisit: &now,
	}

	if err := r.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrContactExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create user: %v", model.ErrPersistence, err)
	}

	r.index.Add(user.ID, user.Embedding)
	s.Authenticate(user.ID)

	r.logger.Info("user registered",
		slog.String("session_id", string(s.ID)),
		slog.String("user_id", string(user.ID)),
	)
	r.bus.Emit(s, model.EventUserLogin, model.UserLoginPayload{
		User:  user.Profile(),
		IsNew: true,
	})
	return user, nil
}
