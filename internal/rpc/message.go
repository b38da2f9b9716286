// Package rpc implements the JSON-RPC message framing shared by the host and
// every backend: one request in, exactly one response out.
package rpc

import "encoding/json"

// Version is the protocol version stamped on every response.
const Version = "2.0"

// Method names understood by every backend.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "listTools"
	MethodCallTool   = "callTool"
)

// Request is a single JSON-RPC request.
// ID is kept raw so that string and numeric ids are echoed exactly as received.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries either Result or Error, never both.
// A nil ID marshals as JSON null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// CallToolParams are the params of a callTool request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Capabilities is the capability set declared by initialize.
type Capabilities struct {
	Tools bool `json:"tools"`
}

// ServerInfo identifies a backend.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is returned by initialize.
type InitializeResult struct {
	Capabilities Capabilities `json:"capabilities"`
	ServerInfo   ServerInfo   `json:"serverInfo"`
}
