// Package catalog provides product lookup for the conversation engine.
package catalog

import (
	"context"
	"strings"

	"github.com/teralab/chatorder/internal/apperr"
)

// Product is the catalog view the engine needs: name, price, description.
type Product struct {
	ID          string
	Name        string
	Price       int64 // minor units, XOF
	Description string
}

// Catalog resolves products for the conversation engine.
type Catalog interface {
	// Get returns the product with the given id.
	Get(ctx context.Context, productID string) (Product, error)

	// Resolve matches free-form user text against the catalog, by id first
	// and then by case-insensitive name containment.
	Resolve(ctx context.Context, text string) (Product, error)
}

// Static is an in-memory catalog backed by a fixed product list.
type Static struct {
	products []Product
}

// NewStatic creates a catalog over the given products.
func NewStatic(products []Product) *Static {
	return &Static{products: products}
}

// Get implements Catalog.
func (c *Static) Get(_ context.Context, productID string) (Product, error) {
	for _, p := range c.products {
		if p.ID == productID {
			return p, nil
		}
	}
	return Product{}, apperr.Validation("unknown product")
}

// Resolve implements Catalog.
func (c *Static) Resolve(_ context.Context, text string) (Product, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return Product{}, apperr.Validation("tell me which product you are interested in")
	}
	for _, p := range c.products {
		if strings.EqualFold(p.ID, needle) {
			return p, nil
		}
	}
	for _, p := range c.products {
		if strings.Contains(needle, strings.ToLower(p.Name)) || strings.Contains(strings.ToLower(p.Name), needle) {
			return p, nil
		}
	}
	return Product{}, apperr.Validation("tell me which product you are interested in")
}
