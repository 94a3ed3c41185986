// Package authcore issues, validates, rotates and revokes JWT credentials
// and answers role/permission questions for principals.
//
// An [Engine] is assembled once with [Builder] and is safe for concurrent
// use. It composes the token codec (package jwt), the durable credential
// store (package credential), the in-process revocation list (package
// revocation), the permission authorizer (package permission) and the
// one-time code store used by email verification and password reset.
//
// # Error handling
//
// Engine methods return the sentinel errors of this package; [KindOf]
// classifies them. Refresh failures are deliberately uniform
// ([ErrInvalidToken]) so callers cannot learn why a refresh token was
// rejected. Raw codec or store errors are logged, never returned.
//
// # What this package must NOT do
//
//   - Persist access tokens or any signed token value.
//   - Render email templates or serve HTTP; see packages notify and middleware.
//   - Import a sub-package that re-imports authcore.
package authcore
