package catalog

import (
	"context"

	"haggle-api/internal/model"
)

// Static serves a fixed in-memory product list. The demo storefront
// ships with three negotiable products; a real deployment would swap in
// a platform-backed implementation of Catalog.
type Static struct {
	products []model.Product
}

// NewStatic creates a catalog over the given products, or the demo set
// when none are provided.
func NewStatic(products ...model.Product) *Static {
	if len(products) == 0 {
		products = demoProducts()
	}
	return &Static{products: products}
}

func (s *Static) ListProducts(ctx context.Context) ([]model.Product, error) {
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Static) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, model.NewNotFoundError("product")
}

func demoProducts() []model.Product {
	return []model.Product{
		{
			ID:          "1",
			Name:        "Vintage Leather Jacket",
			Price:       199.99,
			MinPrice:    149.99,
			MaxOffers:   3,
			Image:       "https://images.unsplash.com/photo-1551488831-00ddcb6c6bd3",
			Description: "Premium quality leather jacket with classic design",
		},
		{
			ID:          "2",
			Name:        "Wireless Headphones",
			Price:       89.99,
			MinPrice:    69.99,
			MaxOffers:   3,
			Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e",
			Description: "High-quality sound with noise cancellation",
		},
		{
			ID:          "3",
			Name:        "Smart Watch",
			Price:       149.99,
			MinPrice:    109.99,
			MaxOffers:   3,
			Image:       "https://images.unsplash.com/photo-1632794716789-42d9995fb5b6",
			Description: "Fitness tracking with sleek modern design",
		},
	}
}

// Verify Static implements Catalog at compile time.
var _ Catalog = (*Static)(nil)
