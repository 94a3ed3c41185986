// Package jwt signs and verifies the bearer credentials issued by authcore:
// access, refresh, password-reset and otp-verify tokens.
//
// # Key separation
//
// Every credential kind is signed with its own HS256 key. A leaked refresh key
// cannot mint access tokens and vice versa; [NewCodec] rejects configurations
// that reuse key material across kinds.
//
// # Failure taxonomy
//
// Verification failures are reported as one of three sentinels:
// [ErrMalformed] (structure or signature), [ErrExpired] (authentic but past
// its expiry) and [ErrKindMismatch] (authentic token of another kind).
//
// # What this package must NOT do
//
//   - Touch any store. Revocation is the caller's concern.
//   - Trust unverified claims for anything but selecting the verification key.
package jwt
