package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/jwt"
)

// RefreshFailureKind classifies refresh failures. The root engine collapses
// all of them into one invalid-token error; the kind only feeds logs,
// metrics and audit.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRevoked
	RefreshFailureNotFound
	RefreshFailureMismatch
	RefreshFailureLookup
	RefreshFailurePrincipal
	RefreshFailureStatus
	RefreshFailureIssue
	RefreshFailureReuse
	RefreshFailureRotate
)

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureDecode:
		return "decode"
	case RefreshFailureRevoked:
		return "revoked"
	case RefreshFailureNotFound:
		return "not_found"
	case RefreshFailureMismatch:
		return "digest_mismatch"
	case RefreshFailureLookup:
		return "lookup"
	case RefreshFailurePrincipal:
		return "principal"
	case RefreshFailureStatus:
		return "status"
	case RefreshFailureIssue:
		return "issue"
	case RefreshFailureReuse:
		return "reuse"
	case RefreshFailureRotate:
		return "rotate"
	}
	return "unknown"
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	PrincipalID  string
	CredentialID string
	Pair         IssuedPair
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Issue       IssueDeps
	Revocations RevocationList
	FindByID    func(ctx context.Context, id string) (Principal, error)
	StatusError func(status uint8) error
}

// RunRefresh verifies a refresh token against the codec, the local
// revocation list and the credential store, then rotates it.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Issue.Codec.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	res := RefreshResult{PrincipalID: claims.Subject, CredentialID: claims.CredentialID()}

	if deps.Revocations != nil && deps.Revocations.IsRevoked(refreshToken) {
		res.Failure = RefreshFailureRevoked
		return res
	}

	// the store is consulted even on a cache miss; the cache is local only
	row, err := credential.FindActiveRefresh(ctx, deps.Issue.Credentials, claims.Subject, claims.CredentialID())
	if err != nil {
		res.Err = err
		if errors.Is(err, credential.ErrNotFound) {
			res.Failure = RefreshFailureNotFound
		} else {
			res.Failure = RefreshFailureLookup
		}
		return res
	}
	if row.Kind != claims.Kind || !row.MatchesValue(refreshToken) {
		res.Failure = RefreshFailureMismatch
		return res
	}

	p, err := deps.FindByID(ctx, claims.Subject)
	if err != nil {
		res.Failure = RefreshFailurePrincipal
		res.Err = err
		return res
	}
	if statusErr := deps.StatusError(p.Status); statusErr != nil {
		res.Failure = RefreshFailureStatus
		res.Err = statusErr
		return res
	}

	pair, err := signPair(p, deps.Issue)
	if err != nil {
		res.Failure = RefreshFailureIssue
		res.Err = err
		return res
	}

	wctx, cancel := detach(ctx, deps.Issue.WriteTimeout)
	defer cancel()
	next := credential.FromClaims(pair.Refresh, pair.RefreshClaims)
	if err := deps.Issue.Credentials.Rotate(wctx, claims.Subject, row.ID, next); err != nil {
		res.Err = err
		if errors.Is(err, credential.ErrNotFound) {
			// lost a race against another rotation or a logout
			res.Failure = RefreshFailureReuse
		} else {
			res.Failure = RefreshFailureRotate
		}
		return res
	}
	if deps.Revocations != nil {
		deps.Revocations.MarkRevoked(refreshToken, row.ExpiresAt)
	}

	res.Pair = pair
	return res
}
