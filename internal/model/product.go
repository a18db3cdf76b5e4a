package model

// Product is a catalog entry with negotiation terms attached.
// MinPrice is the seller's floor and is never exposed through the public
// catalog endpoints; it only participates in offer evaluation.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	MinPrice    float64 `json:"-"`
	MaxOffers   int     `json:"maxOffersCount"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

// DefaultMaxOffers applies when a catalog entry has no explicit round cap.
const DefaultMaxOffers = 3
