// Package stores provides Redis-backed, short-lived record stores for
// one-time codes used by email verification and password reset.
//
// # Design
//
// Each record is a versioned binary blob with a Redis TTL. Consume runs in a
// WATCH/MULTI optimistic transaction with retry on contention. A matching
// code flips Used and the record is kept until shortly after expiry, so a
// replay sees a consumed code rather than a missing one. Digest comparison is
// constant time.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for code records. It
// does not generate codes or compute digests, and makes no authentication
// decisions; that belongs to internal/flows.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log or expose plaintext codes.
//   - Use non-constant-time comparisons for digest matching.
package stores
