package model

import (
	"fmt"
	"math"
)

// Negotiation amounts are decimal prices in major currency units (dollars).
// Internal arithmetic runs at full float64 precision; only values that leave
// the service are rounded. Round2 is the single rounding point so a value
// rendered in a message and the same value in the JSON body never disagree.

// Round2 rounds an amount to 2 decimal places for display and serialization.
// Examples: 87.31666… → 87.32, 149.995 → 150.0
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatAmount renders an amount for user-facing messages, e.g. "149.99".
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// IsValidAmount reports whether an amount is a usable price: finite and
// non-negative. NaN and infinities come from malformed client JSON math
// and must be rejected, not propagated.
func IsValidAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}
