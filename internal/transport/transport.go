// Package transport carries JSON-RPC messages to the host over HTTP, stdio
// and gRPC. Every carrier hands one complete message to the host and writes
// back exactly the one response it gets.
package transport

import (
	"context"

	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// Dispatcher is the host as seen by the carriers.
type Dispatcher interface {
	HandleRaw(ctx context.Context, data []byte) []byte
	Handle(ctx context.Context, req *rpc.Request) *rpc.Response
	Tools() []registry.Descriptor
}

// MaxMessageSize bounds a single request message on every carrier.
const MaxMessageSize = 1 << 20
