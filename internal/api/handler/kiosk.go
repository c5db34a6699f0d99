package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/smartkiosk/internal/api/request"
	"github.com/mcoot/smartkiosk/internal/api/response"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/checkout"
	"github.com/mcoot/smartkiosk/internal/services/identity"
	"github.com/mcoot/smartkiosk/internal/services/pipeline"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// KioskHandler handles requests made on behalf of a live kiosk session
type KioskHandler struct {
	registry  *session.Registry
	router    *pipeline.Router
	registrar *identity.Registrar
	checkout  *checkout.Coordinator
}

// NewKioskHandler creates a new kiosk handler
func NewKioskHandler(
	registry *session.Registry,
	router *pipeline.Router,
	registrar *identity.Registrar,
	coordinator *checkout.Coordinator,
) *KioskHandler {
	return &KioskHandler{
		registry:  registry,
		router:    router,
		registrar: registrar,
		checkout:  coordinator,
	}
}

// Register handles POST /api/v1/register
func (h *KioskHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.SessionID == "" {
		WriteError(w, NewInvalidRequestError("session_id is required"))
		return
	}

	user, err := h.registrar.Register(r.Context(), identity.RegisterRequest{
		SessionID: model.SessionID(req.SessionID),
		Name:      req.Name,
		Contact:   req.Phone,
		Birthday:  req.Birthday,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.Register{User: user.Profile()})
}

// Checkout handles POST /api/v1/checkout
func (h *KioskHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req request.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.SessionID == "" {
		WriteError(w, NewInvalidRequestError("session_id is required"))
		return
	}

	tx, err := h.checkout.Checkout(r.Context(), model.SessionID(req.SessionID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CheckoutFromModel(tx))
}

// Cart handles GET /api/v1/sessions/{session_id}/cart
func (h *KioskHandler) Cart(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["session_id"])

	s, ok := h.registry.Lookup(id)
	if !ok {
		WriteError(w, model.ErrSessionNotFound)
		return
	}

	response.JSON(w, http.StatusOK, response.Cart{
		SessionID: string(id),
		Cart:      h.router.CartSummary(s),
	})
}
