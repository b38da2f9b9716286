package registry

import (
	"context"
	"encoding/json"
)

// Descriptor is the public description of a tool, returned by listTools.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Handler runs a tool with already-validated arguments.
// Returning an *rpc.Error surfaces it unchanged to the caller; any other
// error is reported as a backend failure.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool binds a descriptor to its handler.
type Tool struct {
	Descriptor
	Handler Handler
}
