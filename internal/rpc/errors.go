package rpc

import (
	"encoding/json"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes plus the implementation-defined range
// used for backend and lookup failures.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeBackendError reports an upstream failure (catalog unreachable,
	// bad status, unparseable payload, broadcast failure on notify tools).
	CodeBackendError = -32000
	// CodeNotFound reports a missing product or base price.
	CodeNotFound = -32001
)

// Error is the JSON-RPC error object. It implements error so tool handlers
// can return protocol-level failures directly.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError builds an Error without data.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrParse(cause error) *Error {
	return Errorf(CodeParseError, "parse error: %v", cause)
}

func ErrInvalidRequest(reason string) *Error {
	return Errorf(CodeInvalidRequest, "invalid request: %s", reason)
}

func ErrUnknownMethod() *Error {
	return NewError(CodeMethodNotFound, "unknown method")
}

func ErrUnknownTool() *Error {
	return NewError(CodeMethodNotFound, "unknown tool")
}

func ErrInvalidParams(reason string) *Error {
	return Errorf(CodeInvalidParams, "invalid params: %s", reason)
}

// ErrBackend wraps an upstream failure, keeping the cause message.
func ErrBackend(cause error) *Error {
	return NewError(CodeBackendError, cause.Error())
}
