// Package catalogsvc is the "catalog" backend: stock search and the
// discount/reset pricing tools.
package catalogsvc

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/backend"
	"github.com/triage-ai/toolhost/internal/catalog"
	"github.com/triage-ai/toolhost/internal/pricing"
	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// Namespace is the tool prefix owned by this backend.
const Namespace = "catalog"

// Config configures the catalog backend.
type Config struct {
	Engine *pricing.Engine
	// DefaultThreshold applies when a call omits threshold. Zero means
	// pricing.DefaultThreshold.
	DefaultThreshold int
	Version          string
	Logger           *zap.Logger
}

type service struct {
	engine           *pricing.Engine
	defaultThreshold int
}

// New builds the catalog backend.
func New(cfg Config) (*backend.Server, error) {
	threshold := cfg.DefaultThreshold
	if threshold <= 0 {
		threshold = pricing.DefaultThreshold
	}
	svc := &service{engine: cfg.Engine, defaultThreshold: threshold}

	reg, err := registry.New(Namespace, svc.tools()...)
	if err != nil {
		return nil, err
	}
	return backend.NewServer(rpc.ServerInfo{Name: "catalog", Version: cfg.Version}, reg, cfg.Logger), nil
}

var (
	thresholdSchema = map[string]any{
		"type":        "integer",
		"minimum":     0,
		"description": "Stock threshold; stock below it counts as low.",
	}
	percentSchema = map[string]any{
		"type":        "number",
		"minimum":     0,
		"maximum":     100,
		"description": "Discount percentage off the base price.",
	}
	productIDSchema = map[string]any{
		"type":    "integer",
		"minimum": 1,
	}
)

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *service) tools() []registry.Tool {
	return []registry.Tool{
		{
			Descriptor: registry.Descriptor{
				Name:        "catalog.searchLowStock",
				Description: "List products with stock below threshold",
				InputSchema: objectSchema(map[string]any{"threshold": thresholdSchema}),
			},
			Handler: s.searchLowStock,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "catalog.applyDiscount",
				Description: "Apply a percent discount to a low-stock product",
				InputSchema: objectSchema(map[string]any{
					"product_id": productIDSchema,
					"percent":    percentSchema,
					"threshold":  thresholdSchema,
				}, "product_id", "percent"),
			},
			Handler: s.applyDiscount,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "catalog.applyDiscountAll",
				Description: "Apply a percent discount to every low-stock product",
				InputSchema: objectSchema(map[string]any{
					"percent":   percentSchema,
					"threshold": thresholdSchema,
				}, "percent"),
			},
			Handler: s.applyDiscountAll,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "catalog.resetPrice",
				Description: "Restore the base price of a product no longer low on stock",
				InputSchema: objectSchema(map[string]any{
					"product_id": productIDSchema,
					"threshold":  thresholdSchema,
				}, "product_id"),
			},
			Handler: s.resetPrice,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "catalog.resetPriceAll",
				Description: "Restore the base price of every product no longer low on stock",
				InputSchema: objectSchema(map[string]any{"threshold": thresholdSchema}),
			},
			Handler: s.resetPriceAll,
		},
	}
}

type arguments struct {
	ProductID int     `json:"product_id"`
	Percent   float64 `json:"percent"`
	Threshold *int    `json:"threshold"`
}

func (s *service) decode(raw json.RawMessage) (arguments, error) {
	var args arguments
	if rpcErr := rpc.DecodeParams(raw, &args); rpcErr != nil {
		return args, rpcErr
	}
	return args, nil
}

func (s *service) threshold(args arguments) int {
	if args.Threshold == nil {
		return s.defaultThreshold
	}
	return *args.Threshold
}

func (s *service) searchLowStock(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	threshold := s.threshold(args)
	items, err := s.engine.SearchLowStock(ctx, threshold)
	if err != nil {
		return nil, mapError(err)
	}
	return map[string]any{
		"threshold": threshold,
		"count":     len(items),
		"items":     items,
	}, nil
}

func (s *service) applyDiscount(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ApplyDiscount(ctx, args.ProductID, args.Percent, s.threshold(args))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *service) applyDiscountAll(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ApplyDiscountAll(ctx, args.Percent, s.threshold(args))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *service) resetPrice(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ResetPrice(ctx, args.ProductID, s.threshold(args))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *service) resetPriceAll(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ResetPriceAll(ctx, s.threshold(args))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// mapError translates domain errors to protocol errors. Anything unrecognised
// is returned as-is and reported as a backend failure.
func mapError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return rpc.NewError(rpc.CodeNotFound, catalog.ErrNotFound.Error())
	case errors.Is(err, pricing.ErrNoBasePrice):
		return rpc.NewError(rpc.CodeNotFound, err.Error())
	case errors.Is(err, pricing.ErrInvalidArgument):
		return rpc.ErrInvalidParams(err.Error())
	default:
		return err
	}
}
