package handler

import (
	"io"
	"log/slog"
	"net/http"

	"haggle-api/internal/metrics"
	"haggle-api/internal/model"
)

// SignatureHeader carries the provider's HMAC signature of the raw body.
const SignatureHeader = "X-Ivy-Signature"

// handleIvyCallback receives signed payment-provider events.
// POST /ivy/callback
//
// The full raw body is consumed before anything is parsed: the signature
// covers the exact bytes on the wire.
func (h *Handler) handleIvyCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "unreadable").Inc()
		h.writeError(w, model.NewValidationError("body", "unreadable"))
		return
	}

	receipt, err := h.verifier.VerifyAndDispatch(ctx, raw, r.Header.Get(SignatureHeader))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		h.logger.WarnContext(ctx, "webhook rejected", slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}

	metrics.WebhookEvents.WithLabelValues(receipt.EventType, "ok").Inc()
	h.writeJSON(w, http.StatusOK, receipt)
}
