package router

import (
	"fmt"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Router holds an immutable route table.
type Router struct {
	routes       []Route
	defaultRoute *Route
	metrics      *Metrics
}

// Match is the result of a route lookup.
type Match struct {
	// Route is the selected route.
	Route *Route

	// Path is the path to forward upstream, with the prefix removed when
	// the route strips it.
	Path string

	// Default is set when no prefix matched and the default route was used.
	Default bool
}

// Option is a functional option for the router.
type Option func(*options)

type options struct {
	defaultName string
	metrics     *Metrics
}

// WithDefault names the route used when no prefix matches.
func WithDefault(name string) Option {
	return func(o *options) {
		o.defaultName = name
	}
}

// WithMetrics sets the metrics for the router.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// New builds a router from routes in configuration order.
func New(routes []Route, opts ...Option) (*Router, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Router{
		routes:  make([]Route, 0, len(routes)),
		metrics: o.metrics,
	}
	seen := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		if err := route.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[route.Name]; dup {
			return nil, fmt.Errorf("duplicate route name: %s", route.Name)
		}
		seen[route.Name] = struct{}{}
		route.Args = append([]string(nil), route.Args...)
		r.routes = append(r.routes, route)
	}

	if o.defaultName != "" {
		for i := range r.routes {
			if r.routes[i].Name == o.defaultName {
				r.defaultRoute = &r.routes[i]
				break
			}
		}
		if r.defaultRoute == nil {
			return nil, fmt.Errorf("default route %s is not defined", o.defaultName)
		}
	}
	return r, nil
}

// Match selects the route for path.
func (r *Router) Match(path string) (*Match, error) {
	var best *Route
	for i := range r.routes {
		route := &r.routes[i]
		if !matches(route.PathPrefix, path) {
			continue
		}
		if best == nil || len(route.PathPrefix) > len(best.PathPrefix) {
			best = route
		}
	}

	if best == nil {
		if r.defaultRoute == nil {
			r.metrics.recordMiss()
			return nil, util.NewRouteNotFoundError(path)
		}
		r.metrics.recordMatch(r.defaultRoute.Name)
		return &Match{Route: r.defaultRoute, Path: path, Default: true}, nil
	}

	forward := path
	if best.StripPrefix {
		forward = strip(best.PathPrefix, path)
	}
	r.metrics.recordMatch(best.Name)
	return &Match{Route: best, Path: forward}, nil
}

// Routes returns a copy of the route table.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Len returns the number of routes.
func (r *Router) Len() int {
	return len(r.routes)
}
