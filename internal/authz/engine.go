package authz

import (
	"context"
	"fmt"

	"github.com/ryanuber/go-glob"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Decision labels.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Engine evaluates identities against capability names.
type Engine struct {
	logger  observability.Logger
	metrics *Metrics
}

// Option is a functional option for the engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics for the engine.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// NewEngine creates an authorization engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Matches reports whether any pattern glob-matches capability.
func Matches(patterns []string, capability string) bool {
	if capability == "" {
		return false
	}
	for _, pattern := range patterns {
		if pattern == auth.WildcardCapability || glob.Glob(pattern, capability) {
			return true
		}
	}
	return false
}

// Allows reports whether identity may use capability.
func (e *Engine) Allows(identity *auth.Identity, capability string) bool {
	if identity == nil {
		return false
	}
	return Matches(identity.AllowedPatterns(), capability)
}

// Authorize returns nil if identity may use capability, or an
// authorization-denied error.
func (e *Engine) Authorize(ctx context.Context, identity *auth.Identity, capability string) error {
	if e.Allows(identity, capability) {
		e.metrics.recordDecision(DecisionAllow)
		return nil
	}

	e.metrics.recordDecision(DecisionDeny)
	id := ""
	if identity != nil {
		id = identity.ID()
	}
	e.logger.WithContext(ctx).Info("capability denied",
		observability.String("identity", id),
		observability.String("capability", capability),
	)
	return util.NewError(util.KindAuthorizationDenied,
		fmt.Sprintf("identity %q may not use %q", id, capability))
}

// FilterCatalog returns the capabilities identity may use, in input order.
func (e *Engine) FilterCatalog(identity *auth.Identity, capabilities []string) []string {
	allows := e.Predicate(identity)
	allowed := make([]string, 0, len(capabilities))
	for _, capability := range capabilities {
		if allows(capability) {
			allowed = append(allowed, capability)
		}
	}
	e.metrics.recordFiltered(len(capabilities) - len(allowed))
	return allowed
}

// Predicate returns the matching predicate for identity, for callers that
// filter structured catalogs.
func (e *Engine) Predicate(identity *auth.Identity) func(capability string) bool {
	if identity == nil {
		return func(string) bool { return false }
	}
	patterns := identity.AllowedPatterns()
	return func(capability string) bool {
		return Matches(patterns, capability)
	}
}
