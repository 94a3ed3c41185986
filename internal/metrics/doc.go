// Package metrics holds the Prometheus collectors for authcore.
//
// # Design
//
// All collectors are created by [New] and registered against an injected
// prometheus.Registerer; nothing is registered globally. Every method is safe
// on a nil *Metrics so components can run without instrumentation.
//
// # What this package must NOT do
//
//   - Perform I/O; exposition is the caller's concern (see cmd/authcore).
//   - Import authcore or any sibling package.
//   - Use principal ids or emails as label values.
package metrics
