package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/smartkiosk/internal/api/response"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
)

const storagePingTimeout = 2 * time.Second

// HealthHandler reports server liveness and backend reachability
type HealthHandler struct {
	registry *session.Registry
	catalog  *catalog.Catalog
	storage  storage.Storage
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *session.Registry, catalog *catalog.Catalog, storage storage.Storage) *HealthHandler {
	return &HealthHandler{registry: registry, catalog: catalog, storage: storage}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storagePingTimeout)
	defer cancel()

	resp := response.Health{
		Status:         "ok",
		ActiveSessions: h.registry.Count(),
		CatalogSize:    h.catalog.Len(),
		Storage:        "ok",
	}
	status := http.StatusOK

	if err := h.storage.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Storage = "unreachable"
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, status, resp)
}
