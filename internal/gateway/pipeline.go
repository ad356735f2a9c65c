package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avamcp/internal/audit"
	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/jsonrpc"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// invocation accumulates what is known about one protected request so
// that exactly one audit entry describes it.
type invocation struct {
	ctx           context.Context
	span          trace.Span
	start         time.Time
	correlationID string
	clientIP      string
	identity      *auth.Identity
	method        string
	capability    string
}

func (inv *invocation) entry(eventType audit.EventType) *audit.Entry {
	e := audit.NewEntry(eventType).
		WithCorrelation(inv.correlationID, observability.TraceIDFromContext(inv.ctx)).
		WithClientIP(inv.clientIP).
		WithMethod(inv.method).
		WithCapability(inv.capability).
		WithDuration(time.Since(inv.start))
	if inv.identity != nil {
		e.WithIdentity(inv.identity.ID())
	}
	return e
}

// begin opens the request span and correlation id shared by the protected
// pipeline and the flow endpoints.
func (g *Gateway) begin(c *gin.Context, spanName string) *invocation {
	r := c.Request
	correlationID := observability.CorrelationIDFromRequest(r)

	ctx := observability.ExtractTraceContext(r)
	ctx = observability.ContextWithRequestID(ctx, correlationID)
	ctx, span := g.tracer.StartSpan(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("correlation_id", correlationID),
		),
	)
	c.Request = r.WithContext(ctx)
	c.Header(observability.HeaderRequestID, correlationID)

	return &invocation{
		ctx:           ctx,
		span:          span,
		start:         time.Now(),
		correlationID: correlationID,
		clientIP:      util.RemoteIP(r),
	}
}

// fail records err on the span, submits the audit entry and renders the
// sanitized error response.
func (g *Gateway) fail(c *gin.Context, inv *invocation, eventType audit.EventType, err error) {
	inv.span.RecordError(err)
	inv.span.SetStatus(codes.Error, util.KindOf(err).String())
	g.submit(inv.entry(eventType).WithSuccess(false).WithMessage(util.KindOf(err).String()))
	writeError(c, err, inv.correlationID)
}

func (g *Gateway) failStatus(c *gin.Context, inv *invocation, status int, code, message string) {
	inv.span.SetStatus(codes.Error, code)
	g.submit(inv.entry(audit.EventError).WithSuccess(false).WithMessage(code))
	writeStatus(c, status, code, message, inv.correlationID)
}

func (g *Gateway) submit(entry *audit.Entry) {
	if !g.audit.Submit(entry) {
		g.logger.Debug("audit entry dropped", observability.String("event_type", string(entry.EventType)))
	}
}

// handleProtected runs every non-flow request through identity resolution,
// authorization, rate limiting and routing before forwarding it upstream.
func (g *Gateway) handleProtected(c *gin.Context) {
	inv := g.begin(c, "gateway.invoke")
	defer inv.span.End()
	r := c.Request
	logger := g.logger.WithContext(inv.ctx)

	identity, err := g.resolver.Resolve(inv.ctx, auth.CredentialsFromRequest(r))
	if err != nil {
		logger.Info("authentication failed",
			observability.String("client_ip", inv.clientIP),
			observability.String("reason", util.KindOf(err).String()),
		)
		g.fail(c, inv, audit.EventAuthFailure, err)
		return
	}
	inv.identity = identity
	inv.ctx = auth.ContextWithIdentity(inv.ctx, identity)
	inv.span.SetAttributes(
		attribute.String("identity.id", identity.ID()),
		attribute.String("identity.method", string(identity.Method())),
	)

	if r.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		g.failStatus(c, inv, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only POST is supported")
		return
	}

	body, err := util.ReadLimited(r.Body, g.cfg.Server.MaxBodySize)
	if err != nil {
		if errors.Is(err, util.ErrResponseBodyTooLarge) {
			g.failStatus(c, inv, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Request body too large")
			return
		}
		g.failStatus(c, inv, http.StatusBadRequest, CodeInvalidRequest, "Unreadable request body")
		return
	}

	msg, err := jsonrpc.Parse(body)
	if err != nil || msg.IsResponse() {
		g.failStatus(c, inv, http.StatusBadRequest, CodeInvalidRequest, "Body is not a JSON-RPC request")
		return
	}
	inv.method = msg.Method

	capability, ok, err := jsonrpc.ExtractCapability(msg)
	if err != nil {
		logger.Info("capability denied", observability.String("identity", identity.ID()), observability.Error(err))
		g.fail(c, inv, audit.EventAuthzDenied, err)
		return
	}
	if ok {
		inv.capability = capability
		inv.span.SetAttributes(attribute.String("mcp.tool", capability))
		if err := g.authz.Authorize(inv.ctx, identity, capability); err != nil {
			g.fail(c, inv, audit.EventAuthzDenied, err)
			return
		}
	}

	if err := g.limiter.Check(inv.ctx, identity); err != nil {
		g.fail(c, inv, audit.EventRateLimited, err)
		return
	}

	match, err := g.router.Match(r.URL.Path)
	if err != nil {
		g.fail(c, inv, audit.EventError, err)
		return
	}
	c.Set(routeKey, match.Route.Name)
	inv.span.SetAttributes(attribute.String("mcp.route", match.Route.Name))

	path := ""
	if match.Route.StripPrefix {
		path = match.Path
	}
	reply, err := g.upstreams.Call(inv.ctx, match.Route, path, body)
	if err != nil {
		g.fail(c, inv, audit.EventToolCall, err)
		return
	}

	if reply == nil {
		g.submit(inv.entry(audit.EventToolCall))
		c.Status(http.StatusAccepted)
		c.Writer.WriteHeaderNow()
		return
	}

	if msg.Method == jsonrpc.MethodToolsList {
		if reply, err = g.filterToolsList(inv, reply); err != nil {
			logger.Warn("tools/list reply could not be filtered", observability.Error(err))
			g.fail(c, inv, audit.EventToolCall, util.WrapError(util.KindUpstreamUnavailable, "unfilterable tools/list reply", err))
			return
		}
	}

	g.submit(inv.entry(audit.EventToolCall))
	c.Data(http.StatusOK, "application/json", reply)
}

// filterToolsList removes tools the identity may not call. Error replies
// pass through unchanged; anything else that cannot be filtered fails.
func (g *Gateway) filterToolsList(inv *invocation, reply []byte) ([]byte, error) {
	resp, err := jsonrpc.Parse(reply)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return reply, nil
	}

	filtered, removed, err := jsonrpc.FilterToolsList(resp.Result, g.authz.Predicate(inv.identity))
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return reply, nil
	}
	resp.Result = filtered
	return json.Marshal(resp)
}
