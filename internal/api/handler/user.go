package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/smartkiosk/internal/api/response"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// UserHandler handles shopper history endpoints
type UserHandler struct {
	storage storage.Storage
}

// NewUserHandler creates a new user handler
func NewUserHandler(storage storage.Storage) *UserHandler {
	return &UserHandler{storage: storage}
}

// Get handles GET /api/v1/users/{user_id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.storage.GetUser(r.Context(), model.UserID(mux.Vars(r)["user_id"]))
	if err != nil {
		WriteError(w, storageError(err))
		return
	}

	response.JSON(w, http.StatusOK, response.UserInfoFromModel(user))
}

// Transactions handles GET /api/v1/users/{user_id}/transactions
func (h *UserHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["user_id"])

	if _, err := h.storage.GetUser(r.Context(), id); err != nil {
		WriteError(w, storageError(err))
		return
	}

	txs, err := h.storage.ListTransactionsForUser(r.Context(), id)
	if err != nil {
		WriteError(w, storageError(err))
		return
	}

	response.JSON(w, http.StatusOK, response.TransactionsFromModel(id, txs))
}

// Transaction handles GET /api/v1/transactions/{transaction_id}
func (h *UserHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.storage.GetTransaction(r.Context(), model.TransactionID(mux.Vars(r)["transaction_id"]))
	if err != nil {
		WriteError(w, storageError(err))
		return
	}

	response.JSON(w, http.StatusOK, response.Transaction{Transaction: tx})
}
