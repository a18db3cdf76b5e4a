package handler

import (
	"log/slog"
	"net/http"

	"haggle-api/internal/metrics"
	"haggle-api/internal/model"
	"haggle-api/internal/negotiation"
)

// handleOffer evaluates one negotiation round.
// POST /offers
//
// The client owns its offer history and sends it as storedOffers; the
// response tells it what to append. List price and floor travel with the
// request (the demo keeps no buyer accounts to pin them to); the catalog
// is only consulted for product existence and the round cap.
func (h *Handler) handleOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.OfferRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.OffersEvaluated.WithLabelValues("invalid").Inc()
		h.writeError(w, err)
		return
	}

	if req.ProductID == "" {
		metrics.OffersEvaluated.WithLabelValues("invalid").Inc()
		h.writeError(w, model.NewValidationError("productId", "required"))
		return
	}
	if req.StoredOffers == nil {
		metrics.OffersEvaluated.WithLabelValues("invalid").Inc()
		h.writeError(w, model.NewValidationError("storedOffers", "must be an array"))
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		metrics.OffersEvaluated.WithLabelValues("invalid").Inc()
		h.writeError(w, err)
		return
	}

	terms := negotiation.Terms{
		Price:     req.Price,
		MinPrice:  req.MinPrice,
		MaxOffers: product.MaxOffers,
	}

	h.logger.InfoContext(ctx, "evaluating offer",
		slog.String("product_id", req.ProductID),
		slog.Float64("offer", req.Offer),
		slog.Int("stored_offers", len(req.StoredOffers)),
	)

	resp, err := h.engine.Evaluate(terms, req.StoredOffers, req.Offer)
	if err != nil {
		metrics.OffersEvaluated.WithLabelValues("invalid").Inc()
		h.writeError(w, err)
		return
	}

	metrics.OffersEvaluated.WithLabelValues(outcomeLabel(resp)).Inc()
	h.writeJSON(w, http.StatusOK, resp)
}

// outcomeLabel classifies an offer response for metrics.
func outcomeLabel(resp *model.OfferResponse) string {
	switch {
	case resp.AcceptedOffer != nil && resp.NewOffer == nil:
		return "already_accepted"
	case resp.AcceptedOffer != nil:
		return "accepted"
	case resp.SpecialOffer != nil && resp.NewOffer == nil:
		return "exhausted"
	case resp.SpecialOffer != nil:
		return "special_offer"
	default:
		return "rejected"
	}
}
