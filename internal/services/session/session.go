package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/cart"
)

// Conn is the outbound side of a live connection
type Conn interface {
	// Send enqueues an event for delivery; it must not block on the network
	Send(event model.Event) error
	Close() error
}

// Kind selects an independently throttled pipeline path
type Kind string

const (
	KindAuth   Kind = "auth"
	KindDetect Kind = "detect"
)

// Session is the server-side state of one kiosk connection.
//
// Frame processing and boundary requests (registration, checkout, cart
// removal) all run under the session lock, so state transitions and cart
// mutations for one session are totally ordered. Methods documented as
// "requires lock" must only be called between Lock and Unlock.
type Session struct {
	ID        model.SessionID
	CreatedAt time.Time

	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu           sync.Mutex
	state        model.AuthState
	userID       model.UserID
	pendingFace  *model.PendingFace
	lastAdmitted map[Kind]time.Time
	cart         *cart.Cart
}

func newSession(id model.SessionID, conn Conn, now time.Time, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:           id,
		CreatedAt:    now,
		conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		state:        model.AuthAnonymous,
		lastAdmitted: make(map[Kind]time.Time),
		cart:         cart.New(logger.With(slog.String("session_id", string(id)))),
	}
}

// Lock acquires exclusive access to the session state
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session state
func (s *Session) Unlock() { s.mu.Unlock() }

// Context is cancelled when the session is torn down
func (s *Session) Context() context.Context { return s.ctx }

// Closed reports whether the session has been torn down
func (s *Session) Closed() bool { return s.closed.Load() }

// Conn returns the owning connection
func (s *Session) Conn() Conn { return s.conn }

// close tears the session down exactly once
func (s *Session) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	s.cancel()
	_ = s.conn.Close()
	return true
}

// State returns the authentication state. Requires lock.
func (s *Session) State() model.AuthState { return s.state }

// UserID returns the bound user, empty unless authenticated. Requires lock.
func (s *Session) UserID() model.UserID { return s.userID }

// PendingFace returns the stored unmatched face, if any. Requires lock.
func (s *Session) PendingFace() *model.PendingFace { return s.pendingFace }

// Cart returns the session cart. Requires lock.
func (s *Session) Cart() *cart.Cart { return s.cart }

// Authenticate binds the session to a user and discards any pending face.
// Requires lock.
func (s *Session) Authenticate(userID model.UserID) {
	s.state = model.AuthAuthenticated
	s.userID = userID
	s.pendingFace = nil
}

// SetPendingFace stores an unmatched face, replacing any previous one, and
// moves the session to PendingRegistration. Requires lock.
func (s *Session) SetPendingFace(face *model.PendingFace) {
	s.state = model.AuthPendingRegistration
	s.pendingFace = face
}

// LastAdmitted returns when a frame of kind was last admitted. Requires lock.
func (s *Session) LastAdmitted(kind Kind) (time.Time, bool) {
	t, ok := s.lastAdmitted[kind]
	return t, ok
}

// MarkAdmitted records an admitted frame of kind. Requires lock.
func (s *Session) MarkAdmitted(kind Kind, at time.Time) {
	s.lastAdmitted[kind] = at
}
