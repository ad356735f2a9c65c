package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avamcp/internal/audit"
	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// SessionResponse is returned by a completed authorization flow. The
// access token is the identity provider's token; its identity is already
// in the verification cache.
type SessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ReturnTo     string `json:"return_to,omitempty"`
}

// handleAuthorize starts a delegated flow and redirects to the identity
// provider. The optional provider parameter must name the configured one.
func (g *Gateway) handleAuthorize(c *gin.Context) {
	inv := g.begin(c, "gateway.oauth.authorize")
	defer inv.span.End()
	inv.method = string(auth.MethodDelegated)

	if provider := c.Query("provider"); provider != "" && provider != g.oauth.Name() {
		g.fail(c, inv, audit.EventAuthFailure,
			util.NewError(util.KindInvalidOrExpiredFlowState, "unknown identity provider"))
		return
	}

	target, err := g.oauth.Initiate(inv.ctx, inv.clientIP, c.Query("return_to"))
	if err != nil {
		g.logger.WithContext(inv.ctx).Error("authorization flow could not start", observability.Error(err))
		g.fail(c, inv, audit.EventError, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// handleCallback completes a delegated flow.
func (g *Gateway) handleCallback(c *gin.Context) {
	inv := g.begin(c, "gateway.oauth.callback")
	defer inv.span.End()
	inv.method = string(auth.MethodDelegated)

	session, err := g.oauth.Complete(inv.ctx, c.Query("code"), c.Query("state"), inv.clientIP)
	if err != nil {
		g.logger.WithContext(inv.ctx).Info("authorization flow rejected",
			observability.String("client_ip", inv.clientIP),
			observability.Error(err),
		)
		g.fail(c, inv, audit.EventAuthFailure, err)
		return
	}

	inv.identity = session.Identity
	inv.span.SetAttributes(attribute.String("identity.id", session.Identity.ID()))
	g.submit(inv.entry(audit.EventAuthSuccess))

	tok := session.Token
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, SessionResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scope,
		ReturnTo:     session.ReturnTo,
	})
}
