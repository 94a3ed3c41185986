package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// ValidateFailureKind classifies access validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureRevoked
)

// ValidateResult returns either the access claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  jwt.Claims
}

// ValidateDeps captures access validation dependencies.
type ValidateDeps struct {
	Codec       TokenCodec
	Revocations RevocationList
}

// RunValidate checks an access token. Access tokens are never persisted, so
// the only revocation signal is the local deny-list fed by Logout.
func RunValidate(_ context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Codec.Verify(accessToken, jwt.KindAccess)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}
	if deps.Revocations != nil && deps.Revocations.IsRevoked(accessToken) {
		return ValidateResult{Failure: ValidateFailureRevoked}
	}
	return ValidateResult{Claims: claims}
}
