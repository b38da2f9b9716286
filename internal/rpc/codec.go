package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseRequest decodes one request message.
//
// When the payload is not valid JSON the id cannot be known and the returned
// error response must carry a null id. Structural problems detected after the
// id was read are reported with that id.
func ParseRequest(data []byte) (*Request, *Error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidRequest("empty message")
	}
	if !json.Valid(data) {
		var probe any
		return nil, ErrParse(json.Unmarshal(data, &probe))
	}
	if data[0] != '{' {
		return nil, ErrInvalidRequest("message is not an object")
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return recoverID(data), ErrInvalidRequest(err.Error())
	}
	if !validID(req.ID) {
		req.ID = nil
		return &req, ErrInvalidRequest("id must be a string, number or null")
	}
	if req.Method == "" {
		return &req, ErrInvalidRequest("missing method")
	}
	return &req, nil
}

// recoverID salvages the id of a request whose other fields are mistyped.
func recoverID(data []byte) *Request {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || !validID(probe.ID) {
		return nil
	}
	return &Request{ID: probe.ID}
}

// validID reports whether raw is absent, null, a string or a number.
func validID(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	switch raw[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// Success builds a result response. A result that cannot be encoded turns
// into an internal error response for the same id.
func Success(id json.RawMessage, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return Failure(id, Errorf(CodeInternalError, "encode result: %v", err))
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}
}

// Failure builds an error response.
func Failure(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: rpcErr}
}

// Marshal encodes a response. Only a programming error can make it fail, in
// which case a static internal error is returned instead.
func Marshal(resp *Response) []byte {
	if resp.Result == nil && resp.Error == nil {
		resp.Result = json.RawMessage("null")
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":null,"error":{"code":%d,"message":"encode response"}}`, CodeInternalError))
	}
	return out
}

// DecodeParams unmarshals params into v, treating absent params as an empty object.
func DecodeParams(raw json.RawMessage, v any) *Error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}
