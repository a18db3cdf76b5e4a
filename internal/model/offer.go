package model

// OfferRequest is the negotiation request body.
// The client owns its offer history and submits it on every call; the
// server keeps no negotiation state between requests.
type OfferRequest struct {
	ProductID    string    `json:"productId"`
	Price        float64   `json:"price"`
	MinPrice     float64   `json:"minPrice"`
	Offer        float64   `json:"offer"`
	StoredOffers []float64 `json:"storedOffers"`
}

// OfferResponse is the negotiation outcome returned to the client.
// At most one of AcceptedOffer or SpecialOffer drives the proceed-to-payment
// transition. NewOffer echoes the submitted offer so the client can append
// it to its stored history. ResetAvailable turns true once the negotiation
// reaches a terminal state (acceptance or round exhaustion).
type OfferResponse struct {
	Message        string   `json:"message"`
	NewOffer       *float64 `json:"newOffer,omitempty"`
	AcceptedOffer  *float64 `json:"acceptedOffer,omitempty"`
	SpecialOffer   *float64 `json:"specialOffer,omitempty"`
	ResetAvailable bool     `json:"resetAvailable,omitempty"`
}
