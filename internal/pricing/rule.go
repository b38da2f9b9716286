// Package pricing implements the stock-driven pricing rules applied to the
// catalog: discount low-stock products, reset well-stocked ones to their base
// price. Every rule compares the live price against the computed target
// before writing, so repeating an operation never writes twice.
package pricing

import (
	"fmt"
	"math"

	"github.com/triage-ai/toolhost/internal/catalog"
)

// Epsilon is the price tolerance. Prices closer than this are equal and
// never trigger a write.
const Epsilon = 0.01

// DefaultThreshold is the stock threshold used when a call omits one.
const DefaultThreshold = 25

// Action is the outcome of a rule decision.
type Action string

const (
	ActionDiscount Action = "discount"
	ActionReset    Action = "reset"
	ActionNone     Action = "none"
)

// Decision is the transient result of applying a rule to one product.
type Decision struct {
	ProductID int
	OldPrice  float64
	NewPrice  float64
	Action    Action
	Reason    string
	// Diverged marks a no-op caused by a live price that matches neither
	// the base price nor the rule's target.
	Diverged bool
}

// Mutates reports whether the decision requires a catalog write.
func (d Decision) Mutates() bool { return d.Action != ActionNone }

// Rule decides what should happen to a product's price given its base price.
// Implementations are pure: they never touch the catalog.
type Rule interface {
	// Name identifies the rule in logs and metrics.
	Name() string

	// Decide evaluates p against base.
	Decide(p catalog.Product, base float64) Decision
}

// IsLowStock is the single low-stock predicate. Its complement,
// stock >= threshold, is "well stocked".
func IsLowStock(stock, threshold int) bool {
	return stock < threshold
}

// DiscountTarget is the discounted price for base at percent off, rounded to cents.
func DiscountTarget(base, percent float64) float64 {
	return round2(base * (1 - percent/100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func samePrice(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// DiscountRule lowers the price of a low-stock product to Percent off its base price.
type DiscountRule struct {
	Percent   float64
	Threshold int
}

func (r DiscountRule) Name() string { return "discount" }

func (r DiscountRule) Decide(p catalog.Product, base float64) Decision {
	d := Decision{ProductID: p.ID, OldPrice: p.Price, NewPrice: p.Price, Action: ActionNone}

	if !IsLowStock(p.Stock, r.Threshold) {
		d.Reason = fmt.Sprintf("stock %d is not below threshold %d, discount not applied", p.Stock, r.Threshold)
		return d
	}

	target := DiscountTarget(base, r.Percent)
	if samePrice(p.Price, target) {
		d.Reason = "already discounted"
		return d
	}
	if !samePrice(p.Price, base) {
		d.Reason = fmt.Sprintf("price %.2f diverges from base price %.2f, discount not applied", p.Price, base)
		d.Diverged = true
		return d
	}

	d.Action = ActionDiscount
	d.OldPrice = base
	d.NewPrice = target
	d.Reason = fmt.Sprintf("stock %d below threshold %d", p.Stock, r.Threshold)
	return d
}

// ResetRule restores the base price of a product that is no longer low on stock.
type ResetRule struct {
	Threshold int
}

func (r ResetRule) Name() string { return "reset" }

func (r ResetRule) Decide(p catalog.Product, base float64) Decision {
	d := Decision{ProductID: p.ID, OldPrice: p.Price, NewPrice: p.Price, Action: ActionNone}

	if IsLowStock(p.Stock, r.Threshold) {
		d.Reason = fmt.Sprintf("stock %d is below threshold %d, price not reset", p.Stock, r.Threshold)
		return d
	}
	if samePrice(p.Price, base) {
		d.Reason = "already at base price"
		return d
	}

	d.Action = ActionReset
	d.NewPrice = base
	d.Reason = fmt.Sprintf("stock %d at or above threshold %d", p.Stock, r.Threshold)
	return d
}
