package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/jwt"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Codec        TokenCodec
	Credentials  credential.Store
	Revocations  RevocationList
	WriteTimeout time.Duration
}

// LogoutResult reports what a logout touched.
type LogoutResult struct {
	Err          error
	PrincipalID  string
	CredentialID string
	// AccessDenied is set when the presented access token was deny-listed.
	AccessDenied bool
}

// RunLogout revokes exactly the presented refresh credential. An optional
// access token of the same principal is deny-listed until it expires.
//
// An expired refresh token needs no revocation and is reported as a codec
// error like any other undecodable token.
func RunLogout(ctx context.Context, refreshToken, accessToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Codec.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		return LogoutResult{Err: err}
	}
	res := LogoutResult{PrincipalID: claims.Subject, CredentialID: claims.CredentialID()}

	wctx, cancel := detach(ctx, deps.WriteTimeout)
	defer cancel()
	if err := deps.Credentials.Revoke(wctx, claims.CredentialID()); err != nil {
		res.Err = err
		return res
	}
	if deps.Revocations != nil {
		deps.Revocations.MarkRevoked(refreshToken, time.Unix(claims.ExpiresAt, 0))
	}

	if accessToken != "" && deps.Revocations != nil {
		access, err := deps.Codec.Verify(accessToken, jwt.KindAccess)
		if err == nil && access.Subject == claims.Subject {
			deps.Revocations.MarkRevoked(accessToken, time.Unix(access.ExpiresAt, 0))
			res.AccessDenied = true
		}
	}
	return res
}

// RunLogoutAll revokes every refresh credential of principalID.
func RunLogoutAll(ctx context.Context, principalID string, deps LogoutDeps) (int64, error) {
	wctx, cancel := detach(ctx, deps.WriteTimeout)
	defer cancel()
	return deps.Credentials.RevokeAllForPrincipal(wctx, principalID, jwt.KindRefresh)
}
