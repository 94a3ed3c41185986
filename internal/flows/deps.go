package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Login             LoginDeps
	Refresh           RefreshDeps
	Validate          ValidateDeps
	Logout            LogoutDeps
	EmailVerification EmailVerificationDeps
	PasswordReset     PasswordResetDeps
}

// Principal is the flow-local view of a principal. PasswordHash is only
// populated on login-specific lookups.
type Principal struct {
	ID           string
	Email        string
	PasswordHash string
	Status       uint8
	Roles        []string
}

// TokenCodec is the subset of *jwt.Codec the flows use.
type TokenCodec interface {
	Sign(claims jwt.Claims) (string, jwt.Claims, error)
	Verify(token string, expected jwt.Kind) (jwt.Claims, error)
}

// RevocationList is the subset of *revocation.Cache the flows use.
type RevocationList interface {
	MarkRevoked(signed string, expiresAt time.Time)
	IsRevoked(signed string) bool
}

// CodeStore is the subset of *stores.OTPStore the flows use.
type CodeStore interface {
	Issue(ctx context.Context, record *stores.OTPRecord) error
	Consume(ctx context.Context, purpose stores.Purpose, principalID string, digest [32]byte, maxAttempts int) (*stores.OTPRecord, error)
	Delete(ctx context.Context, purpose stores.Purpose, principalID string) error
}

// IssueDeps is shared by every flow that mints a token pair.
type IssueDeps struct {
	Codec           TokenCodec
	Credentials     credential.Store
	NewCredentialID func() string
	// WriteTimeout bounds store writes that are detached from the caller.
	WriteTimeout time.Duration
}

// IssuedPair is a freshly signed access/refresh pair. The refresh row has not
// been persisted yet.
type IssuedPair struct {
	Access        string
	AccessClaims  jwt.Claims
	Refresh       string
	RefreshClaims jwt.Claims
}

// signPair signs an access token carrying p's roles and email plus a refresh
// token bound to a new credential id.
func signPair(p Principal, deps IssueDeps) (IssuedPair, error) {
	access, accessClaims, err := deps.Codec.Sign(jwt.Claims{
		Subject: p.ID,
		Kind:    jwt.KindAccess,
		Access:  &jwt.AccessFields{Roles: p.Roles, Email: p.Email},
	})
	if err != nil {
		return IssuedPair{}, err
	}
	refresh, refreshClaims, err := deps.Codec.Sign(jwt.Claims{
		Subject:    p.ID,
		Kind:       jwt.KindRefresh,
		Credential: &jwt.CredentialFields{CredentialID: deps.NewCredentialID()},
	})
	if err != nil {
		return IssuedPair{}, err
	}
	return IssuedPair{
		Access:        access,
		AccessClaims:  accessClaims,
		Refresh:       refresh,
		RefreshClaims: refreshClaims,
	}, nil
}

// detach returns a context that survives caller cancellation, bounded by
// timeout. Writes belonging to one logical step run on it so an abandoned
// request cannot leave half of a rotation behind.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
