// Package handler provides HTTP handlers for the storefront API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"haggle-api/internal/catalog"
	"haggle-api/internal/model"
	"haggle-api/internal/negotiation"
	"haggle-api/internal/webhook"
)

// CheckoutClient creates checkout sessions with the payment provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, order json.RawMessage) (json.RawMessage, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	catalog  catalog.Catalog
	engine   *negotiation.Engine
	checkout CheckoutClient
	verifier *webhook.Verifier
	logger   *slog.Logger
}

// New creates a Handler. The checkout client may be nil to disable the
// payment proxy (for tests that only exercise negotiation).
func New(c catalog.Catalog, engine *negotiation.Engine, checkout CheckoutClient, verifier *webhook.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  c,
		engine:   engine,
		checkout: checkout,
		verifier: verifier,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)

	// Negotiation
	mux.HandleFunc("POST /offers", h.handleOffer)

	// Payment provider
	mux.HandleFunc("POST /ivy/checkout-sessions", h.handleCreateCheckoutSession)
	mux.HandleFunc("POST /ivy/callback", h.handleIvyCallback)

	// MCP transport for shopper agents
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError
// if present. Uses errors.As() to unwrap error chains.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
