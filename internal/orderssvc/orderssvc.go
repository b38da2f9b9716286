// Package orderssvc is the "orders" backend.
package orderssvc

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/backend"
	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// Namespace is the tool prefix owned by this backend.
const Namespace = "orders"

// PendingNotifier announces that orders for a product are pending.
type PendingNotifier interface {
	NotifyPending(ctx context.Context, productID int) error
}

// Config configures the orders backend.
type Config struct {
	Notifier PendingNotifier
	Version  string
	Logger   *zap.Logger
}

// New builds the orders backend.
func New(cfg Config) (*backend.Server, error) {
	reg, err := registry.New(Namespace, registry.Tool{
		Descriptor: registry.Descriptor{
			Name:        "orders.notifyPending",
			Description: "Notify pending orders for a product",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"product_id": map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []string{"product_id"},
			},
		},
		Handler: notifyPending(cfg.Notifier),
	})
	if err != nil {
		return nil, err
	}
	return backend.NewServer(rpc.ServerInfo{Name: "orders", Version: cfg.Version}, reg, cfg.Logger), nil
}

// NotifyPendingResult is returned by orders.notifyPending.
type NotifyPendingResult struct {
	Status    string `json:"status"`
	ProductID int    `json:"product_id"`
}

func notifyPending(n PendingNotifier) registry.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args struct {
			ProductID int `json:"product_id"`
		}
		if rpcErr := rpc.DecodeParams(raw, &args); rpcErr != nil {
			return nil, rpcErr
		}
		// the publish is the whole effect, so its failure is the caller's failure
		if err := n.NotifyPending(ctx, args.ProductID); err != nil {
			return nil, err
		}
		return NotifyPendingResult{Status: "notified", ProductID: args.ProductID}, nil
	}
}
