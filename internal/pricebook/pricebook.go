// Package pricebook holds the reference (base) price of each product. Base
// prices are owned by the host, not by the catalog, so they survive any number
// of discount and reset cycles on the live price.
package pricebook

import (
	"context"
	"sort"
)

// Book resolves the base price of a product. ok is false when the product has
// no base price; err is reserved for lookup failures.
type Book interface {
	BasePrice(ctx context.Context, productID int) (price float64, ok bool, err error)
}

// Static is an in-memory base price table.
type Static map[int]float64

// BasePrice implements Book.
func (s Static) BasePrice(_ context.Context, productID int) (float64, bool, error) {
	p, ok := s[productID]
	return p, ok, nil
}

// IDs returns the product ids in ascending order.
func (s Static) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Defaults returns the base prices of the stock demo catalog.
func Defaults() Static {
	return Static{
		1:  1499.0,
		2:  29.0,
		3:  79.0,
		4:  329.0,
		5:  119.0,
		6:  149.0,
		7:  199.0,
		8:  129.0,
		9:  799.0,
		10: 999.0,
		11: 899.0,
		12: 649.0,
		13: 59.0,
		14: 179.0,
		15: 549.0,
		16: 229.0,
		17: 249.0,
		18: 159.0,
		19: 399.0,
		20: 299.0,
	}
}
