// Package permission resolves a principal's effective permissions from its
// role assignments and answers authorization questions against them.
//
// # Resolution
//
// Role ids for the principal are loaded from a [Source], filtered to active
// roles, and the union of their permission ids is resolved to permission
// names. Holding the active admin role short-circuits to the full catalog.
//
// # Caching
//
// [Authorizer] memoizes each principal's resolved sets with a fixed TTL
// (default five minutes). The TTL is re-checked against the injected clock
// on every read. There is no proactive invalidation: a role or permission
// change reaches a principal only when its entry ages out, or when the
// component that made the change calls [Authorizer.Invalidate] or
// [Authorizer.InvalidateAll]. Callers must accept up to one TTL of staleness.
//
// # Architecture boundaries
//
// Sources are read-only from the Authorizer's point of view. Referential and
// uniqueness checks happen when roles and permissions are written
// ([StaticSource] registration, Postgres constraints), never on read.
//
// # What this package must NOT do
//
//   - Import authcore, jwt or credential.
//   - Decide authentication; it only answers for an already-known principal.
package permission
