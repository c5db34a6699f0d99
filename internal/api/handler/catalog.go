package handler

import (
	"net/http"

	"github.com/mcoot/smartkiosk/internal/api/response"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
)

// CatalogHandler handles product catalog endpoints
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List handles GET /api/v1/products
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.Products()
	response.JSON(w, http.StatusOK, response.Products{
		Products: products,
		Count:    len(products),
	})
}

// Reload handles POST /api/v1/admin/catalog/reload
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Reload(r.Context()); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CatalogReload{Products: h.catalog.Len()})
}
