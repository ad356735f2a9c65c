// Package authz decides whether an identity may use a capability.
//
// An identity's allowed patterns are glob patterns ("read_*", "*") matched
// against the capability name; the capability is allowed if any pattern
// matches. Call-time authorization and catalog filtering share the same
// predicate, so a caller is never shown a capability it cannot call, nor
// denied one it was shown.
package authz
