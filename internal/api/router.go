package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/smartkiosk/internal/api/handler"
	"github.com/mcoot/smartkiosk/internal/api/middleware"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/services/auth"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/services/checkout"
	"github.com/mcoot/smartkiosk/internal/services/identity"
	"github.com/mcoot/smartkiosk/internal/services/pipeline"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
	"github.com/mcoot/smartkiosk/internal/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger    *slog.Logger
	Storage   storage.Storage
	Registry  *session.Registry
	Router    *pipeline.Router
	Registrar *identity.Registrar
	Checkout  *checkout.Coordinator
	Catalog   *catalog.Catalog
	AdminAuth *auth.Service
	Metrics   *metrics.Metrics
	// AllowedOrigins limits browser WebSocket upgrades; empty allows any origin
	AllowedOrigins []string
}

// NewRouter creates a new router with the kiosk WebSocket, the JSON API and
// the metrics endpoint
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	kioskHandler := handler.NewKioskHandler(cfg.Registry, cfg.Router, cfg.Registrar, cfg.Checkout)
	catalogHandler := handler.NewCatalogHandler(cfg.Catalog)
	userHandler := handler.NewUserHandler(cfg.Storage)
	healthHandler := handler.NewHealthHandler(cfg.Registry, cfg.Catalog, cfg.Storage)
	wsHandler := ws.NewHandler(cfg.Registry, cfg.Router, cfg.Metrics, cfg.Logger, cfg.AllowedOrigins)

	// Create middleware
	adminMiddleware := middleware.AdminAuth(cfg.AdminAuth)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Kiosk connections
	r.Handle("/ws/{session_id}", recoveryMiddleware(loggingMiddleware(wsHandler))).Methods(http.MethodGet)

	// Metrics
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Session boundary requests
	api.HandleFunc("/register", kioskHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/checkout", kioskHandler.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{session_id}/cart", kioskHandler.Cart).Methods(http.MethodGet)

	// Catalog and history
	api.HandleFunc("/products", catalogHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/{user_id}", userHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{user_id}/transactions", userHandler.Transactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{transaction_id}", userHandler.Transaction).Methods(http.MethodGet)

	// Admin routes (require admin key)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminMiddleware)
	admin.HandleFunc("/catalog/reload", catalogHandler.Reload).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	return r
}
