// Package jsonrpc models the JSON-RPC 2.0 messages exchanged with MCP
// upstreams, to the extent the gateway needs: capability extraction for
// authorization and filtering of tool listings.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// MCP methods the gateway inspects.
const (
	MethodToolsCall = "tools/call"
	MethodToolsList = "tools/list"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeInternalError  = -32603
)

// ErrInvalidMessage is returned for bodies that are not a JSON-RPC message.
var ErrInvalidMessage = errors.New("invalid json-rpc message")

// Message is a JSON-RPC request, notification or response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a JSON-RPC error.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Parse decodes a single JSON-RPC message. Members are matched by exact
// key, and a body that a case-sensitive parser could read differently
// (repeated keys, keys differing only by case, trailing data) is rejected.
func Parse(data []byte) (*Message, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var msg Message
	if msg.JSONRPC, err = stringMember(fields, "jsonrpc"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Method, err = stringMember(fields, "method"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	msg.ID = fields["id"]
	msg.Params = fields["params"]
	msg.Result = fields["result"]
	if raw, ok := fields["error"]; ok {
		if err := json.Unmarshal(raw, &msg.Error); err != nil {
			return nil, fmt.Errorf("%w: error member: %v", ErrInvalidMessage, err)
		}
	}

	if msg.JSONRPC != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidMessage, msg.JSONRPC)
	}
	if msg.Method == "" && msg.Result == nil && msg.Error == nil {
		return nil, fmt.Errorf("%w: neither method nor result", ErrInvalidMessage)
	}
	return &msg, nil
}

// IsRequest reports whether m is a request expecting a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether m is a request without an id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether m is a response.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// NewRequest builds a request.
func NewRequest(id any, method string, params any) (*Message, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal id: %w", err)
	}
	msg := &Message{JSONRPC: Version, ID: rawID, Method: method}
	if params != nil {
		if msg.Params, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}
	return msg, nil
}

// NewErrorResponse builds an error response for id, which may be nil.
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Message{
		JSONRPC: Version,
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
}
