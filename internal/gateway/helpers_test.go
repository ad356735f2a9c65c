package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/audit"
	"github.com/vyrodovalexey/avamcp/internal/auth/apikey"
	"github.com/vyrodovalexey/avamcp/internal/config"
)

const (
	devKey   = "dev-key-0123456789"
	adminKey = "admin-key-0123456789"
)

// fakeMCP is an upstream MCP server that knows three tools.
type fakeMCP struct {
	*httptest.Server

	mu       sync.Mutex
	paths    []string
	failWith atomic.Int32
}

func newFakeMCP(t *testing.T) *fakeMCP {
	t.Helper()

	f := &fakeMCP{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()

		if status := f.failWith.Load(); status != 0 {
			http.Error(w, "upstream exploded at http://10.0.0.7/internal", int(status))
			return
		}

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params struct {
				Name string `json:"name"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.ID) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		var result any
		switch req.Method {
		case "tools/list":
			result = map[string]any{
				"tools": []map[string]any{
					{"name": "read_file", "description": "Read a file"},
					{"name": "write_file", "description": "Write a file"},
					{"name": "read_dir", "description": "List a directory"},
				},
				"nextCursor": "c1",
			}
		case "tools/call":
			result = map[string]any{"content": []map[string]string{{"type": "text", "text": req.Params.Name}}}
		default:
			result = map[string]any{"method": req.Method}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeMCP) receivedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// fakeCollector records audit batches.
type fakeCollector struct {
	*httptest.Server

	mu      sync.Mutex
	entries []audit.Entry
	headers http.Header
}

func newFakeCollector(t *testing.T) *fakeCollector {
	t.Helper()

	c := &fakeCollector{}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []audit.Entry
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.entries = append(c.entries, batch...)
		c.headers = r.Header.Clone()
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(c.Close)
	return c
}

func (c *fakeCollector) received() []audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Entry(nil), c.entries...)
}

// testConfig returns a validated configuration with two key identities
// and one route to upstreamURL: dev1 may call read_* ten times a minute,
// admin is unrestricted.
func testConfig(t *testing.T, upstreamURL string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Auth.APIKeys = []config.APIKeyConfig{
		{
			ID:           "dev1",
			KeyHash:      apikey.HashKey(devKey),
			AllowedTools: []string{"read_*"},
			RateLimit:    &config.QuotaConfig{Requests: 10, Period: config.Duration(time.Minute)},
		},
		{ID: "admin", KeyHash: apikey.HashKey(adminKey)},
	}
	cfg.Routes = []config.RouteConfig{
		{Name: "files", PathPrefix: "/fs", Transport: config.TransportHTTP, URL: upstreamURL},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestGateway(t *testing.T, cfg *config.Config, opts ...Option) *Gateway {
	t.Helper()

	g, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.release() })
	return g
}

func rpcBody(id int, method string, params any) string {
	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if id > 0 {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	data, _ := json.Marshal(msg)
	return string(data)
}

func toolCall(name string) string {
	return rpcBody(1, "tools/call", map[string]any{"name": name, "arguments": map[string]string{}})
}

func serve(g *Gateway, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func withKey(key string) http.Header {
	return http.Header{"X-Api-Key": {key}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()

	var body ErrorBody
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	return body
}
