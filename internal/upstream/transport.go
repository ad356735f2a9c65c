package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Transport limits.
const (
	DefaultTimeout      = 30 * time.Second
	MaxResponseBodySize = 10 << 20
)

// Transport delivers one JSON-RPC message and returns the reply. A
// notification gets a nil reply.
type Transport interface {
	Call(ctx context.Context, path string, body []byte) ([]byte, error)
	Close() error
}

// messageID returns the compacted id of a JSON-RPC message, or nil for
// notifications.
func messageID(body []byte) ([]byte, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if len(head.ID) == 0 || bytes.Equal(head.ID, []byte("null")) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, head.ID); err != nil {
		return nil, fmt.Errorf("compact id: %w", err)
	}
	return buf.Bytes(), nil
}
