package gateway

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// Fixed endpoint paths.
const (
	PathHealth         = "/health"
	PathMetrics        = "/metrics"
	PathOAuthAuthorize = "/oauth/authorize"
	PathOAuthCallback  = "/oauth/callback"
)

// routeKey is the gin context key holding the matched route name.
const routeKey = "avamcp.route"

func (g *Gateway) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), g.metricsMiddleware())

	engine.GET(PathHealth, g.handleHealth)
	engine.GET(PathMetrics, gin.WrapH(g.metrics.http.Handler(append(g.metrics.gatherers(), g.gatherers...)...)))
	if g.oauth != nil {
		engine.GET(PathOAuthAuthorize, g.handleAuthorize)
		engine.GET(PathOAuthCallback, g.handleCallback)
	}
	engine.NoRoute(g.handleProtected)
	return engine
}

// metricsMiddleware records one request metric per response, labeled by
// the matched route name or the fixed endpoint path.
func (g *Gateway) metricsMiddleware() gin.HandlerFunc {
	m := g.metrics.http
	return func(c *gin.Context) {
		start := time.Now()
		m.IncrementActiveRequests()
		defer m.DecrementActiveRequests()

		c.Next()

		route := c.GetString(routeKey)
		if route == "" {
			route = c.FullPath()
		}
		if route == "" {
			route = observability.UnmatchedRoute
		}
		size := int64(c.Writer.Size())
		if size < 0 {
			size = 0
		}
		m.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start),
			c.Request.ContentLength, size)
	}
}
