package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeIdP is an identity provider with token, introspection and userinfo
// endpoints whose responses tests can replace.
type fakeIdP struct {
	*httptest.Server

	mu            sync.Mutex
	tokenStatus   int
	tokenBody     map[string]any
	introspection map[string]any
	userinfo      map[string]any
	userStatus    int
	lastForm      url.Values

	tokenCalls      atomic.Int32
	introspectCalls atomic.Int32
	userinfoCalls   atomic.Int32
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	idp := &fakeIdP{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "access-123",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-456",
			"scope":         "openid profile",
		},
		introspection: map[string]any{"active": true, "sub": "alice", "scope": "tools:read"},
		userinfo:      map[string]any{"id": 4242, "login": "octocat"},
		userStatus:    http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		idp.tokenCalls.Add(1)
		_ = r.ParseForm()
		idp.mu.Lock()
		idp.lastForm = r.PostForm
		status, body := idp.tokenStatus, idp.tokenBody
		idp.mu.Unlock()
		writeJSON(w, status, body)
	})
	mux.HandleFunc("/introspect", func(w http.ResponseWriter, _ *http.Request) {
		idp.introspectCalls.Add(1)
		idp.mu.Lock()
		body := idp.introspection
		idp.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		idp.userinfoCalls.Add(1)
		idp.mu.Lock()
		status, body := idp.userStatus, idp.userinfo
		idp.mu.Unlock()
		writeJSON(w, status, body)
	})

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Close)
	return idp
}

func (idp *fakeIdP) set(fn func(idp *fakeIdP)) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	fn(idp)
}

func (idp *fakeIdP) form() url.Values {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.lastForm
}

func (idp *fakeIdP) endpoints(introspection bool) Endpoints {
	e := Endpoints{
		AuthorizationURL: idp.URL + "/authorize",
		TokenURL:         idp.URL + "/token",
		UserInfoURL:      idp.URL + "/userinfo",
	}
	if introspection {
		e.IntrospectionURL = idp.URL + "/introspect"
	}
	return e
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
