// Package credential persists issued credentials and their revocation state.
//
// A [Credential] row is created when a refresh or password-reset token is
// issued, mutated only to flip Revoked, and deleted by the reaper once it has
// expired. The signed token itself is never stored: rows carry the SHA-256
// digest of the signed value and are located by the credential id embedded in
// the token claims.
//
// # Backends
//
//   - [MemoryStore]: mutex-guarded map, for tests and single-process use.
//   - [RedisStore]: one hash per credential plus a per-principal index set and
//     an expiry sorted set. Every read-modify-write runs as a Lua script.
//   - [PostgresStore]: database/sql over the pgx driver. Rotation is a single
//     transaction guarded by a conditional UPDATE.
//
// # Architecture boundaries
//
// Active-row filtering (kind, principal, revoked, expiry) happens inside the
// backend so that a concurrent Revoke cannot race a FindActive.
//
// # What this package must NOT do
//
//   - Import authcore or permission (no upward imports).
//   - Verify token signatures or decide authentication policy.
//   - Persist usable bearer tokens.
package credential
