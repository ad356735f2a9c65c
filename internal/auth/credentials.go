package auth

import (
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Credentials is the credential material presented by one request.
type Credentials struct {
	// Bearer is the value of "Authorization: Bearer <value>".
	Bearer string

	// APIKey is the value of the X-Api-Key header.
	APIKey string

	// Header is the full request header set, used for certificate attributes.
	Header http.Header

	// RemoteIP is the address of the directly connected peer.
	RemoteIP string
}

// CredentialsFromRequest extracts credential material from r.
func CredentialsFromRequest(r *http.Request) *Credentials {
	creds := &Credentials{
		Header:   r.Header,
		RemoteIP: util.RemoteIP(r),
		APIKey:   strings.TrimSpace(r.Header.Get(HeaderXAPIKey)),
	}

	authz := r.Header.Get(HeaderAuthorization)
	if len(authz) > len(AuthSchemeBearer) && strings.EqualFold(authz[:len(AuthSchemeBearer)], AuthSchemeBearer) {
		creds.Bearer = strings.TrimSpace(authz[len(AuthSchemeBearer):])
	}

	return creds
}

// LooksLikeJWT reports whether token has the three dot-separated segments
// of a compact JWS.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
