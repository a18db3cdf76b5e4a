package handler

import (
	"net/http"

	"haggle-api/internal/model"
)

// handleListProducts returns the negotiable product list.
// GET /products
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, productsResponse{Products: products})
}

// handleGetProduct returns one product by id.
// GET /products/{id}
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, model.NewValidationError("id", "product ID required"))
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type productsResponse struct {
	Products []model.Product `json:"products"`
}
