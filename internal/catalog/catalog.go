// Package catalog is the client side of the externally owned product catalog.
// The catalog is the only shared mutable resource: callers fetch fresh on
// every operation and never cache what they read.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the catalog has no product with the requested id.
var ErrNotFound = errors.New("product not found")

// Product mirrors the catalog's product representation.
type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Update is a partial product update. Nil fields are left untouched.
type Update struct {
	Price *float64
	Stock *int
}

// Store is the catalog contract consumed by the pricing engine.
type Store interface {
	// List returns every product. Order is whatever the catalog returns.
	List(ctx context.Context) ([]Product, error)
	// Get returns one product or ErrNotFound.
	Get(ctx context.Context, id int) (*Product, error)
	// Update applies a partial update and returns the resulting product.
	Update(ctx context.Context, id int, upd Update) (*Product, error)
}
