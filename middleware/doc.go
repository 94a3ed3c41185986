// Package middleware adapts authcore.Engine to net/http.
//
// [Guard] reads the bearer token from the Authorization header, validates it
// as an access token and attaches the claims to the request context with
// authcore.WithClaims. [RequirePermissions] and [RequireAnyRole] run after
// Guard and consult the Authorizer for the authenticated principal.
//
// The handlers are plain func(http.Handler) http.Handler and mount directly
// on a chi router or a stdlib mux.
//
// This package makes no decision of its own: token checks and permission
// checks are delegated to the Engine, and failures are translated to status
// codes by authcore.KindOf.
package middleware
