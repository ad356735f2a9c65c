// Package upstream forwards JSON-RPC messages to MCP servers.
//
// Three transports are supported: plain HTTP POST, HTTP with a
// server-sent-events response stream, and a child process speaking
// newline-delimited JSON over stdin/stdout. Every transport sits behind a
// per-route circuit breaker, and failures surface as
// util.KindUpstreamUnavailable.
package upstream
