package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/catalog"
	"github.com/triage-ai/toolhost/internal/pricebook"
)

var (
	// ErrNoBasePrice is returned when a product has no entry in the base price table.
	ErrNoBasePrice = errors.New("no base price")
	// ErrInvalidArgument is returned for out-of-range percent or threshold values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Notifier is told about every price the engine writes.
type Notifier interface {
	PriceChanged(ctx context.Context, p catalog.Product)
}

// Recorder counts rule decisions.
type Recorder interface {
	RecordDecision(rule string, action string)
}

// Outcome is the result of one pricing operation on one product.
type Outcome struct {
	ProductID       int      `json:"product_id"`
	Name            string   `json:"name,omitempty"`
	Action          Action   `json:"action"`
	OldPrice        float64  `json:"old_price"`
	NewPrice        float64  `json:"new_price"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	Stock           int      `json:"stock"`
	Message         string   `json:"message,omitempty"`

	diverged bool
}

// Config configures an Engine.
type Config struct {
	Store    catalog.Store
	Book     pricebook.Book
	Notifier Notifier // optional
	Recorder Recorder // optional
	Logger   *zap.Logger
}

// Engine applies pricing rules to the catalog. It holds no per-call state and
// is safe for concurrent use; concurrent writes to one product race in the
// catalog, last write wins.
type Engine struct {
	store    catalog.Store
	book     pricebook.Book
	notifier Notifier
	recorder Recorder
	logger   *zap.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    cfg.Store,
		book:     cfg.Book,
		notifier: cfg.Notifier,
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// SearchLowStock returns every product with stock below threshold, ascending by id.
func (e *Engine) SearchLowStock(ctx context.Context, threshold int) ([]catalog.Product, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	products, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]catalog.Product, 0)
	for _, p := range products {
		if IsLowStock(p.Stock, threshold) {
			low = append(low, p)
		}
	}
	sortByID(low)
	return low, nil
}

// ApplyDiscount discounts one product by percent off its base price when its
// stock is below threshold.
func (e *Engine) ApplyDiscount(ctx context.Context, productID int, percent float64, threshold int) (*Outcome, error) {
	if err := validatePercent(percent); err != nil {
		return nil, err
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	out, err := e.applyOne(ctx, productID, DiscountRule{Percent: percent, Threshold: threshold})
	if err != nil {
		return nil, err
	}
	if out.Action == ActionDiscount {
		out.DiscountPercent = &percent
	}
	return out, nil
}

// ResetPrice restores the base price of one product when its stock is at or
// above threshold.
func (e *Engine) ResetPrice(ctx context.Context, productID, threshold int) (*Outcome, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	return e.applyOne(ctx, productID, ResetRule{Threshold: threshold})
}

// ApplyDiscountAll runs the discount rule over the whole catalog.
func (e *Engine) ApplyDiscountAll(ctx context.Context, percent float64, threshold int) (*BatchOutcome, error) {
	if err := validatePercent(percent); err != nil {
		return nil, err
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	batch, err := e.applyAll(ctx, DiscountRule{Percent: percent, Threshold: threshold})
	if err != nil {
		return nil, err
	}
	for i := range batch.Updated {
		batch.Updated[i].DiscountPercent = &percent
	}
	return batch, nil
}

// ResetPriceAll runs the reset rule over the whole catalog.
func (e *Engine) ResetPriceAll(ctx context.Context, threshold int) (*BatchOutcome, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	return e.applyAll(ctx, ResetRule{Threshold: threshold})
}

func (e *Engine) applyOne(ctx context.Context, productID int, rule Rule) (*Outcome, error) {
	p, err := e.store.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	base, ok, err := e.book.BasePrice(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w for product %d", ErrNoBasePrice, productID)
	}
	return e.apply(ctx, *p, base, rule)
}

// applyAll evaluates every listed product in ascending id order. A catalog or
// base price failure aborts the batch; writes made before it stand.
func (e *Engine) applyAll(ctx context.Context, rule Rule) (*BatchOutcome, error) {
	products, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByID(products)

	batch := &BatchOutcome{}
	for _, p := range products {
		base, ok, err := e.book.BasePrice(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			batch.Skipped = append(batch.Skipped, p.ID)
			continue
		}

		out, err := e.apply(ctx, p, base, rule)
		if err != nil {
			return nil, fmt.Errorf("%s product %d: %w", rule.Name(), p.ID, err)
		}
		switch {
		case out.diverged:
			batch.Diverged = append(batch.Diverged, *out)
		case out.Action == ActionNone:
			batch.Compliant = append(batch.Compliant, *out)
		default:
			batch.Updated = append(batch.Updated, *out)
		}
	}

	action := ActionDiscount
	if _, ok := rule.(ResetRule); ok {
		action = ActionReset
	}
	batch.summarize(action)
	return batch, nil
}

func (e *Engine) apply(ctx context.Context, p catalog.Product, base float64, rule Rule) (*Outcome, error) {
	d := rule.Decide(p, base)
	e.record(rule.Name(), d.Action)

	out := &Outcome{
		ProductID: p.ID,
		Name:      p.Name,
		Action:    d.Action,
		OldPrice:  d.OldPrice,
		NewPrice:  d.NewPrice,
		Stock:     p.Stock,
	}
	if !d.Mutates() {
		out.Message = d.Reason
		out.diverged = d.Diverged
		return out, nil
	}

	price := d.NewPrice
	updated, err := e.store.Update(ctx, p.ID, catalog.Update{Price: &price})
	if err != nil {
		return nil, err
	}
	out.NewPrice = updated.Price
	out.Stock = updated.Stock

	e.logger.Info("price updated",
		zap.String("rule", rule.Name()),
		zap.Int("product_id", p.ID),
		zap.Float64("old_price", d.OldPrice),
		zap.Float64("new_price", updated.Price),
		zap.String("reason", d.Reason),
	)

	if e.notifier != nil {
		e.notifier.PriceChanged(ctx, *updated)
	}
	return out, nil
}

func (e *Engine) record(rule string, action Action) {
	if e.recorder != nil {
		e.recorder.RecordDecision(rule, string(action))
	}
}

func validatePercent(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: percent %v must be between 0 and 100", ErrInvalidArgument, percent)
	}
	return nil
}

func validateThreshold(threshold int) error {
	if threshold < 0 {
		return fmt.Errorf("%w: threshold %d must not be negative", ErrInvalidArgument, threshold)
	}
	return nil
}

func sortByID(products []catalog.Product) {
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
}
