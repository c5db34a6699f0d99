// Package pipeline routes admitted frames to the stage matching the
// session's authentication state.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/detection"
	"github.com/mcoot/smartkiosk/internal/services/framegate"
	"github.com/mcoot/smartkiosk/internal/services/identity"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// Stage consumes one decoded frame for a locked session
type Stage interface {
	Process(ctx context.Context, s *session.Session, frame image.Image) error
}

// Emitter delivers an event to a session
type Emitter interface {
	Emit(s *session.Session, eventType model.EventType, payload any)
}

// Router is the per-session state machine driver. Anonymous and
// PendingRegistration sessions feed the identity stage; Authenticated
// sessions feed the detection stage. Exactly one stage runs per admitted frame.
type Router struct {
	gate      *framegate.Gate
	identity  Stage
	detection Stage
	bus       Emitter
	clock     clock.Clock
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// New creates a Router
func New(
	gate *framegate.Gate,
	identityStage Stage,
	detectionStage Stage,
	bus Emitter,
	clock clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		gate:      gate,
		identity:  identityStage,
		detection: detectionStage,
		bus:       bus,
		clock:     clock,
		metrics:   m,
		tracer:    otel.Tracer("github.com/mcoot/smartkiosk/internal/services/pipeline"),
		logger:    logger.With(slog.String("component", "stage-router")),
	}
}

// route picks the throttle kind and stage for a state
func (r *Router) route(state model.AuthState) (session.Kind, Stage, string) {
	if state == model.AuthAuthenticated {
		return session.KindDetect, r.detection, detection.StageName
	}
	return session.KindAuth, r.identity, identity.StageName
}

// HandleFrame runs one frame through gate, router and stage while holding
// the session lock. The returned error is informational: framegate.ErrDropped
// for throttled frames, model.ErrDecode or model.ErrInference for non-fatal
// failures. None of them change session state.
func (r *Router) HandleFrame(ctx context.Context, s *session.Session, payload string) error {
	r.metrics.FrameReceived()

	s.Lock()
	defer s.Unlock()

	if s.Closed() {
		return nil
	}

	kind, stage, name := r.route(s.State())
	frame, err := r.gate.Admit(s, payload, kind)
	if err != nil {
		return err
	}

	ctx, span := r.tracer.Start(ctx, "frame."+name, trace.WithAttributes(
		attribute.String("session.id", string(s.ID)),
		attribute.String("session.state", string(s.State())),
	))
	defer span.End()

	start := r.clock.Now()
	err = stage.Process(ctx, s, frame)
	r.metrics.FrameProcessed(name, r.clock.Now().Sub(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelWarn
		if errors.Is(err, model.ErrPersistence) {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "frame processing failed",
			slog.String("session_id", string(s.ID)),
			slog.String("stage", name),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// RemoveCartItem removes a cart line on behalf of the client and reports the
// resulting cart. Out-of-range indexes leave the cart unchanged.
func (r *Router) RemoveCartItem(s *session.Session, index int) model.CartSummary {
	s.Lock()
	defer s.Unlock()

	summary := s.Cart().RemoveItem(index)
	r.bus.Emit(s, model.EventCartUpdated, model.CartUpdatedPayload{Cart: summary})
	return summary
}

// CartSummary returns the current cart of s
func (r *Router) CartSummary(s *session.Session) model.CartSummary {
	s.Lock()
	defer s.Unlock()
	return s.Cart().Summary()
}

// Pong answers a client ping
func (r *Router) Pong(s *session.Session) {
	now := r.clock.Now()
	r.bus.Emit(s, model.EventPong, model.PongPayload{
		Timestamp: float64(now.UnixMilli()) / 1000,
	})
}
