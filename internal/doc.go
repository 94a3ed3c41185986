// Package internal contains helpers private to authcore: one-time code
// generation and digesting, and random secrets.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: YAML + environment configuration for cmd/authcore
//   - flows: pure-function flow orchestrators for every Engine operation
//   - logger: zap construction and context propagation
//   - metrics: Prometheus collectors for operations, cache and reaper
//   - pgdb: Postgres connection and schema migrations
//   - stores: Redis-backed one-time code storage
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
