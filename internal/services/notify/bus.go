// Package notify delivers typed events to the connection owning a session.
package notify

import (
	"log/slog"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// Bus is fire-and-forget, at-most-once delivery. A failed delivery tears the
// session down instead of retrying.
type Bus struct {
	registry *session.Registry
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Bus
func New(registry *session.Registry, clock clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Bus {
	return &Bus{
		registry: registry,
		clock:    clock,
		metrics:  m,
		logger:   logger.With(slog.String("component", "notification-bus")),
	}
}

// Send delivers event to the live session id. Events for absent sessions
// are discarded.
func (b *Bus) Send(id model.SessionID, event model.Event) {
	s, ok := b.registry.Lookup(id)
	if !ok {
		b.logger.Debug("event for unknown session discarded",
			slog.String("session_id", string(id)),
			slog.String("type", string(event.Type)),
		)
		return
	}
	b.deliver(s, event)
}

// Emit builds an event for s and delivers it
func (b *Bus) Emit(s *session.Session, eventType model.EventType, payload any) {
	b.deliver(s, model.Event{
		Type:      eventType,
		Timestamp: b.clock.Now(),
		SessionID: s.ID,
		Payload:   payload,
	})
}

func (b *Bus) deliver(s *session.Session, event model.Event) {
	// Results that complete after teardown are dropped silently
	if s.Closed() {
		return
	}
	if event.SessionID == "" {
		event.SessionID = s.ID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.clock.Now()
	}

	if err := s.Conn().Send(event); err != nil {
		b.logger.Warn("event delivery failed, tearing down session",
			slog.String("session_id", string(s.ID)),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		b.metrics.SessionTornDown(metrics.TeardownSendFailed)
		b.registry.Evict(s)
	}
}
