package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"haggle-api/internal/model"
)

// handleCreateCheckoutSession proxies checkout-session creation to the
// payment provider so the API key stays server-side.
// POST /ivy/checkout-sessions
//
// The order body and the provider response (including the redirect URL)
// pass through unmodified.
func (h *Handler) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.checkout == nil {
		h.writeError(w, model.NewConfigurationError("payment provider"))
		return
	}

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	order, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, model.NewValidationError("body", "unreadable"))
		return
	}
	if !json.Valid(order) {
		h.writeError(w, model.NewValidationError("body", "invalid JSON"))
		return
	}

	h.logger.InfoContext(ctx, "creating checkout session",
		slog.Int("order_bytes", len(order)),
	)

	session, err := h.checkout.CreateCheckoutSession(ctx, order)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(session); err != nil {
		h.logger.Error("failed to write session response", slog.String("error", err.Error()))
	}
}
