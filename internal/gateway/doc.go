// Package gateway owns one running instance of the MCP security gateway.
//
// A Gateway is built from an immutable config.Config snapshot. It holds
// every cache (key sets, flow states, token verifications, rate buckets)
// and every background task (key-set refresh, state sweep, bucket sweep,
// audit shipping). Start launches the tasks and the HTTP listener; Stop
// shuts the listener down, cancels the tasks, waits for the final audit
// flush and releases upstream connections.
//
// Every request that is not a flow endpoint, /health or /metrics goes
// through the protected pipeline:
//
//	resolve identity -> authorize capability -> rate limit -> route -> upstream
//
// and produces exactly one audit entry. Configuration reload builds a new
// Gateway and swaps it in; a running Gateway never changes.
package gateway
