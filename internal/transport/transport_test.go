package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// echoDispatcher answers every request with its method and params.
type echoDispatcher struct {
	mu       sync.Mutex
	requests []*rpc.Request
}

func (d *echoDispatcher) HandleRaw(ctx context.Context, data []byte) []byte {
	req, rpcErr := rpc.ParseRequest(data)
	if rpcErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return rpc.Marshal(rpc.Failure(id, rpcErr))
	}
	return rpc.Marshal(d.Handle(ctx, req))
}

func (d *echoDispatcher) Handle(_ context.Context, req *rpc.Request) *rpc.Response {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	return rpc.Success(req.ID, map[string]any{"method": req.Method, "params": req.Params})
}

func (d *echoDispatcher) Tools() []registry.Descriptor {
	return []registry.Descriptor{{Name: "catalog.searchLowStock", Description: "List products with stock below threshold"}}
}

func (d *echoDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}
