// Package catalog provides product lookups for the storefront.
// The catalog is an external collaborator to the negotiation engine;
// implementations translate whatever backs the product list into
// model.Product.
package catalog

import (
	"context"

	"haggle-api/internal/model"
)

// Catalog abstracts product storage.
type Catalog interface {
	// ListProducts returns all products available for negotiation.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// GetProduct returns the product with the given id, or a not-found
	// error for unknown ids.
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}
