package auth

import (
	"slices"
	"strings"
)

// ScopeMapper maps granted scopes to capability patterns.
type ScopeMapper map[string][]string

// Capabilities returns the capability patterns granted by scopes.
//
// An empty mapper grants everything. A scope mapped to "*" grants
// everything. Scopes without a mapping grant nothing, so an identity whose
// scopes are all unmapped ends up with an empty list and is denied.
func (m ScopeMapper) Capabilities(scopes []string) []string {
	if len(m) == 0 {
		return Unrestricted()
	}

	caps := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		mapped, ok := m[scope]
		if !ok {
			continue
		}
		if slices.Contains(mapped, WildcardCapability) {
			return Unrestricted()
		}
		caps = append(caps, mapped...)
	}

	slices.Sort(caps)
	return slices.Compact(caps)
}

// ParseScopes accepts a space-separated string or a list of strings.
func ParseScopes(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		return slices.Clone(s)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
