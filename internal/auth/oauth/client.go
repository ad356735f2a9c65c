package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Client defaults.
const (
	DefaultHTTPTimeout  = 10 * time.Second
	MaxResponseBodySize = 16 << 10
)

// TokenResponse is the token endpoint response returned to the caller as
// the session credential.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ClientConfig configures calls to the identity provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoints    Endpoints
	UserIDClaim  string
}

// Client talks to one identity provider through a circuit breaker.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient creates an identity provider client. A nil httpClient uses a
// client with DefaultHTTPTimeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, breaker *circuitbreaker.Breaker) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if breaker == nil {
		breaker = circuitbreaker.New("oauth", circuitbreaker.Config{IsSuccessful: ProviderAnswered})
	}
	return &Client{cfg: cfg, httpClient: httpClient, breaker: breaker}
}

// ProviderAnswered counts every error except provider unavailability as a
// breaker success: a rejected credential means the provider is healthy.
func ProviderAnswered(err error) bool {
	return err == nil || !errors.Is(err, util.ErrProviderUnavailable)
}

// AuthorizationURL builds the redirect URL that starts the flow.
func (c *Client) AuthorizationURL(state, challenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", ChallengeMethodS256)

	sep := "?"
	if strings.Contains(c.cfg.Endpoints.AuthorizationURL, "?") {
		sep = "&"
	}
	return c.cfg.Endpoints.AuthorizationURL + sep + q.Encode()
}

// Exchange trades an authorization code and its verifier for a token.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	var tok TokenResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := formRequest(ctx, c.cfg.Endpoints.TokenURL, form)
		if err != nil {
			return err
		}
		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return statusError("token exchange", status)
		}
		if err := json.Unmarshal(body, &tok); err != nil {
			return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "decode token response", err)
		}
		return nil
	})
	if err != nil {
		return nil, breakerError(err)
	}

	if tok.AccessToken == "" {
		return nil, util.NewError(util.KindInvalidCredential, "token response has no access_token")
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return &tok, nil
}

// Introspect validates token at the introspection endpoint.
func (c *Client) Introspect(ctx context.Context, token string) (TokenInfo, error) {
	form := url.Values{}
	form.Set("token", token)

	var info TokenInfo
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := formRequest(ctx, c.cfg.Endpoints.IntrospectionURL, form)
		if err != nil {
			return err
		}
		if c.cfg.ClientSecret != "" {
			req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
		}
		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return statusError("introspection", status)
		}
		info, err = c.parseTokenInfo(body)
		return err
	})
	if err != nil {
		return TokenInfo{}, breakerError(err)
	}
	return info, nil
}

// UserInfo validates token by fetching the caller's profile. A 401 means
// the token is no longer valid.
func (c *Client) UserInfo(ctx context.Context, token string) (TokenInfo, error) {
	var info TokenInfo
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoints.UserInfoURL, http.NoBody)
		if err != nil {
			return util.WrapError(util.KindInternal, "build userinfo request", err)
		}
		req.Header.Set(auth.HeaderAuthorization, auth.AuthSchemeBearer+token)
		req.Header.Set("Accept", "application/json")

		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return util.NewError(util.KindExpiredCredential, "userinfo rejected token")
		}
		if status < 200 || status > 299 {
			return statusError("userinfo", status)
		}
		info, err = c.parseTokenInfo(body)
		info.Active = true
		return err
	})
	if err != nil {
		return TokenInfo{}, breakerError(err)
	}
	return info, nil
}

func formRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, util.WrapError(util.KindInternal, "build identity provider request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "identity provider request", err)
	}
	defer resp.Body.Close()

	body, err := util.ReadLimited(resp.Body, MaxResponseBodySize)
	if err != nil {
		return 0, nil, util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "read identity provider response", err)
	}
	return resp.StatusCode, body, nil
}

// statusError classifies a non-success status: server errors mean the
// provider is unavailable, anything else rejects the credential.
func statusError(op string, status int) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return util.NewError(util.KindUpstreamIdentityProviderUnavailable,
			fmt.Sprintf("%s returned status %d", op, status))
	}
	return util.NewError(util.KindInvalidCredential, fmt.Sprintf("%s returned status %d", op, status))
}

func breakerError(err error) error {
	if errors.Is(err, util.ErrCircuitOpen) {
		return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "identity provider circuit open", err)
	}
	return err
}

// parseTokenInfo reads an introspection or userinfo document. "active"
// defaults to true; the user id comes from the configured claim, then
// "sub", then "id" as a string or number.
func (c *Client) parseTokenInfo(body []byte) (TokenInfo, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return TokenInfo{}, util.WrapError(util.KindUpstreamIdentityProviderUnavailable,
			"decode identity provider response", err)
	}

	info := TokenInfo{Active: true}
	if active, ok := doc["active"].(bool); ok {
		info.Active = active
	}
	if !info.Active {
		return info, nil
	}

	for _, claim := range []string{c.cfg.UserIDClaim, "sub", "id"} {
		if claim == "" {
			continue
		}
		if id := stringOrNumber(doc[claim]); id != "" {
			info.UserID = id
			break
		}
	}
	for _, claim := range []string{"username", "name", "login"} {
		if name, ok := doc[claim].(string); ok && name != "" {
			info.Name = name
			break
		}
	}

	info.Scopes = auth.ParseScopes(doc["scope"])
	if exp, ok := doc["exp"].(float64); ok {
		info.ExpiresAt = int64(exp)
	} else if exp, ok := doc["exp"].(string); ok {
		info.ExpiresAt, _ = strconv.ParseInt(exp, 10, 64)
	}
	info.Claims = doc
	return info, nil
}

func stringOrNumber(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
