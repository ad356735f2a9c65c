package router

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

func httpRoute(name, prefix string) Route {
	return Route{Name: name, PathPrefix: prefix, Transport: TransportHTTP, URL: "http://upstream.local"}
}

func TestRoute_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		route   Route
		wantErr bool
	}{
		{name: "http", route: httpRoute("a", "/a")},
		{name: "sse", route: Route{Name: "s", PathPrefix: "/s", Transport: TransportSSE, URL: "http://x"}},
		{name: "stdio", route: Route{Name: "p", PathPrefix: "/p", Transport: TransportStdio, Command: "mcp-fs"}},
		{name: "missing name", route: Route{PathPrefix: "/a", Transport: TransportHTTP, URL: "http://x"}, wantErr: true},
		{name: "relative prefix", route: httpRoute("a", "a"), wantErr: true},
		{name: "unknown transport", route: Route{Name: "a", PathPrefix: "/a", Transport: "grpc"}, wantErr: true},
		{name: "http without url", route: Route{Name: "a", PathPrefix: "/a", Transport: TransportHTTP}, wantErr: true},
		{name: "stdio without command", route: Route{Name: "a", PathPrefix: "/a", Transport: TransportStdio}, wantErr: true},
		{name: "negative timeout", route: Route{Name: "a", PathPrefix: "/a", Transport: TransportHTTP, URL: "http://x",
			Timeout: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.route.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New([]Route{httpRoute("a", "/a"), httpRoute("a", "/b")})
	assert.ErrorContains(t, err, "duplicate route name")

	_, err = New([]Route{httpRoute("a", "/a")}, WithDefault("missing"))
	assert.Error(t, err)

	_, err = New([]Route{httpRoute("", "/a")})
	assert.Error(t, err)
}

func TestRouter_Match(t *testing.T) {
	t.Parallel()

	r, err := New([]Route{
		httpRoute("fs", "/fs"),
		httpRoute("fs-admin", "/fs/admin"),
		httpRoute("exact", "/exact"),
		httpRoute("first", "/dup"),
		httpRoute("second", "/dup"),
		httpRoute("trailing", "/tools/"),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "longest prefix wins", path: "/fs/admin/read", want: "fs-admin"},
		{name: "shorter prefix", path: "/fs/read", want: "fs"},
		{name: "exact path", path: "/fs", want: "fs"},
		{name: "exact longer path", path: "/fs/admin", want: "fs-admin"},
		{name: "segment boundary", path: "/exact/x", want: "exact"},
		{name: "ties keep config order", path: "/dup/x", want: "first"},
		{name: "trailing slash prefix", path: "/tools/list", want: "trailing"},
		{name: "trailing slash prefix bare", path: "/tools", want: "trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := r.Match(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Route.Name)
			assert.False(t, m.Default)
			assert.Equal(t, tt.path, m.Path)
		})
	}
}

func TestRouter_MatchRequiresSegmentBoundary(t *testing.T) {
	t.Parallel()

	r, err := New([]Route{httpRoute("exact", "/exact"), httpRoute("fs", "/fs")})
	require.NoError(t, err)

	for _, path := range []string{"/exactnot", "/fsx/read", "/", "/other"} {
		_, err := r.Match(path)
		assert.ErrorIs(t, err, util.ErrRouteNotFound, path)
	}
}

func TestRouter_RootPrefixMatchesEverything(t *testing.T) {
	t.Parallel()

	r, err := New([]Route{httpRoute("root", "/"), httpRoute("fs", "/fs")})
	require.NoError(t, err)

	m, err := r.Match("/anything/at/all")
	require.NoError(t, err)
	assert.Equal(t, "root", m.Route.Name)

	m, err = r.Match("/fs/x")
	require.NoError(t, err)
	assert.Equal(t, "fs", m.Route.Name)
}

func TestRouter_DefaultRoute(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")
	r, err := New([]Route{httpRoute("fs", "/fs"), httpRoute("fallback", "/fallback")},
		WithDefault("fallback"), WithMetrics(metrics))
	require.NoError(t, err)

	m, err := r.Match("/unknown/path")
	require.NoError(t, err)
	assert.Equal(t, "fallback", m.Route.Name)
	assert.True(t, m.Default)
	assert.Equal(t, "/unknown/path", m.Path)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.matches.WithLabelValues("fallback")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.misses))
}

func TestRouter_StripPrefix(t *testing.T) {
	t.Parallel()

	strip := httpRoute("fs", "/fs")
	strip.StripPrefix = true
	root := httpRoute("root", "/")
	root.StripPrefix = true

	r, err := New([]Route{strip, root})
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{path: "/fs/read", want: "/read"},
		{path: "/fs", want: "/"},
		{path: "/fs/a/b", want: "/a/b"},
		{path: "/other", want: "/other"},
	}

	for _, tt := range tests {
		m, err := r.Match(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Path, tt.path)
	}
}

func TestRouter_MissMetric(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("")
	r, err := New(nil, WithMetrics(metrics))
	require.NoError(t, err)

	_, err = r.Match("/x")
	assert.ErrorIs(t, err, util.ErrRouteNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.misses))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Routes())
}
