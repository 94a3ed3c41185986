package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/authcore/credential"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInput
	LoginFailureCredentials
	LoginFailureStatus
	LoginFailureLookup
	LoginFailureIssue
	LoginFailurePersist
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	PrincipalID string
	Pair        IssuedPair
	RehashErr   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Issue IssueDeps

	FindForLogin        func(ctx context.Context, email string) (Principal, error)
	IsPrincipalNotFound func(error) bool
	VerifyPassword      func(plaintext, digest string) (bool, error)
	// DummyHash is verified against when the email is unknown so both paths
	// pay for one hash comparison.
	DummyHash   string
	StatusError func(status uint8) error

	// Optional rehash on login when the stored digest uses an outdated
	// scheme or cost. Failures are reported through RehashErr only.
	NeedsRehash        func(digest string) bool
	HashPassword       func(plaintext string) (string, error)
	UpdatePasswordHash func(ctx context.Context, id, digest string) error
}

// RunLogin checks the password, gates on principal status and issues an
// access token plus a persisted refresh credential.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureInput}
	}

	p, err := deps.FindForLogin(ctx, email)
	if err != nil {
		if deps.IsPrincipalNotFound != nil && deps.IsPrincipalNotFound(err) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			return LoginResult{Failure: LoginFailureCredentials}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(password, p.PasswordHash)
	if err != nil || !ok {
		return LoginResult{Failure: LoginFailureCredentials, PrincipalID: p.ID}
	}
	if statusErr := deps.StatusError(p.Status); statusErr != nil {
		return LoginResult{Failure: LoginFailureStatus, Err: statusErr, PrincipalID: p.ID}
	}
	rehashErr := rehash(ctx, p, password, deps)
	password = ""

	pair, err := signPair(p, deps.Issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, PrincipalID: p.ID}
	}

	wctx, cancel := detach(ctx, deps.Issue.WriteTimeout)
	defer cancel()
	if err := deps.Issue.Credentials.Create(wctx, credential.FromClaims(pair.Refresh, pair.RefreshClaims)); err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err, PrincipalID: p.ID}
	}

	return LoginResult{PrincipalID: p.ID, Pair: pair, RehashErr: rehashErr}
}

func rehash(ctx context.Context, p Principal, password string, deps LoginDeps) error {
	if deps.NeedsRehash == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return nil
	}
	if !deps.NeedsRehash(p.PasswordHash) {
		return nil
	}
	digest, err := deps.HashPassword(password)
	if err != nil {
		return err
	}
	wctx, cancel := detach(ctx, deps.Issue.WriteTimeout)
	defer cancel()
	return deps.UpdatePasswordHash(wctx, p.ID, digest)
}
