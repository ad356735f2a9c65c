package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

// ExtractCapability returns the capability a message invokes. Only
// tools/call carries one; ok is false for every other method. A tools/call
// without a tool name is denied.
func ExtractCapability(m *Message) (name string, ok bool, err error) {
	if m == nil || m.Method != MethodToolsCall {
		return "", false, nil
	}

	if len(m.Params) == 0 {
		return "", false, util.NewError(util.KindAuthorizationDenied, "tools/call without a tool name")
	}
	params, err := decodeObject(m.Params)
	if err != nil {
		return "", false, util.WrapError(util.KindAuthorizationDenied, "malformed tools/call params", err)
	}
	name, err = stringMember(params, "name")
	if err != nil {
		return "", false, util.WrapError(util.KindAuthorizationDenied, "malformed tools/call params", err)
	}
	if name == "" {
		return "", false, util.NewError(util.KindAuthorizationDenied, "tools/call without a tool name")
	}
	return name, true, nil
}

// FilterToolsList removes tools not accepted by allow from a tools/list
// result. Unknown result fields and tool attributes are preserved. A tool
// whose name cannot be read unambiguously is removed. It
// returns the new result and how many tools were removed.
func FilterToolsList(result json.RawMessage, allow func(name string) bool) (json.RawMessage, int, error) {
	fields, err := decodeObject(result)
	if err != nil {
		return nil, 0, fmt.Errorf("decode tools/list result: %w", err)
	}

	rawTools, ok := fields["tools"]
	if !ok {
		return result, 0, nil
	}

	var tools []json.RawMessage
	if err := json.Unmarshal(rawTools, &tools); err != nil {
		return nil, 0, fmt.Errorf("decode tools: %w", err)
	}

	kept := make([]json.RawMessage, 0, len(tools))
	for _, tool := range tools {
		attrs, err := decodeObject(tool)
		if err != nil {
			continue
		}
		name, err := stringMember(attrs, "name")
		if err != nil || name == "" {
			continue
		}
		if allow(name) {
			kept = append(kept, tool)
		}
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return nil, 0, fmt.Errorf("encode tools: %w", err)
	}
	fields["tools"] = encoded

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, 0, fmt.Errorf("encode tools/list result: %w", err)
	}
	return out, len(tools) - len(kept), nil
}
