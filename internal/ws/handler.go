package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mcoot/smartkiosk/internal/api/apierr"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// FrameRouter is the part of the pipeline driven by inbound messages
type FrameRouter interface {
	HandleFrame(ctx context.Context, s *session.Session, payload string) error
	RemoveCartItem(s *session.Session, index int) model.CartSummary
	Pong(s *session.Session)
}

// Handler upgrades GET /ws/{session_id} and runs one session per connection
type Handler struct {
	registry *session.Registry
	router   FrameRouter
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler. Browser upgrades are limited to
// allowedOrigins unless it is empty.
func NewHandler(registry *session.Registry, router FrameRouter, m *metrics.Metrics, logger *slog.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		registry: registry,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		metrics: m,
		logger:  logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["session_id"])
	if id == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("session id is required"))
		return
	}

	// Reject duplicates before upgrading so the client sees a 409
	if _, exists := h.registry.Lookup(id); exists {
		apierr.WriteError(w, model.ErrSessionExists)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
		return
	}

	logger := h.logger.With(slog.String("session_id", string(id)))
	conn := NewConn(wsConn, logger)

	s, err := h.registry.Register(id, conn)
	if err != nil {
		// Lost a race with another connection for the same id
		logger.Warn("session registration rejected", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	reason := h.serve(s, conn, logger)

	// Teardown already triggered elsewhere (send failure, replacement, shutdown)
	// has been counted by whoever triggered it.
	if !s.Closed() {
		h.metrics.SessionTornDown(reason)
	}
	h.registry.Evict(s)
}

// serve runs the reader loop until the connection ends, returning the
// teardown reason.
func (h *Handler) serve(s *session.Session, conn *Conn, logger *slog.Logger) string {
	mailbox := session.NewMailbox()
	go h.frameWorker(s, mailbox, logger)

	conn.prepareRead()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return metrics.TeardownDisconnect
		}

		msg, err := ParseMessage(data)
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				logger.Warn("malformed message, closing session", slog.String("error", err.Error()))
				return metrics.TeardownProtocolError
			}
			logger.Warn("invalid message ignored", slog.String("error", err.Error()))
			continue
		}

		switch m := msg.(type) {
		case FrameMessage:
			if mailbox.Put(m.Frame) {
				h.metrics.FrameDropped(metrics.DropSuperseded)
			}
		case PingMessage:
			h.router.Pong(s)
		case CartRemoveMessage:
			h.router.RemoveCartItem(s, m.Index)
		}
	}
}

// frameWorker drains the mailbox one frame at a time until the session ends
func (h *Handler) frameWorker(s *session.Session, mailbox *session.Mailbox, logger *slog.Logger) {
	ctx := s.Context()
	for {
		payload, err := mailbox.Take(ctx)
		if err != nil {
			return
		}
		if !h.handleFrame(ctx, s, payload, logger) {
			h.metrics.SessionTornDown(metrics.TeardownPanic)
			h.registry.Evict(s)
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, s *session.Session, payload string, logger *slog.Logger) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in frame worker",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			ok = false
		}
	}()

	// Failures are logged by the router and never change session state
	_ = h.router.HandleFrame(ctx, s, payload)
	return true
}
