// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunResetPassword, ...) takes a
// typed dependency struct and returns a result carrying a failure kind. The
// Engine maps failure kinds onto its public errors, metrics and audit
// events; flows never decide what the caller is told.
//
// # Architecture boundaries
//
// Flows coordinate the token codec, credential store, revocation list and
// one-time code store. They own none of them.
//
// Store writes that belong to one logical step run on a context detached
// from the caller's cancellation and bounded by a write timeout.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Log or emit metrics directly.
package flows
