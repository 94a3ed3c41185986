package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
)

// PasswordResetFailureKind classifies password reset failures.
type PasswordResetFailureKind int

const (
	PasswordResetFailureNone PasswordResetFailureKind = iota
	PasswordResetFailureInput
	PasswordResetFailureLookup
	PasswordResetFailureStore
	PasswordResetFailureCode
	PasswordResetFailureAttempts
	PasswordResetFailureIssue
	PasswordResetFailurePersist
	PasswordResetFailureToken
	PasswordResetFailureReuse
	PasswordResetFailurePolicy
	PasswordResetFailureUpdate
)

// PasswordResetResult carries the outcome of a reset step.
type PasswordResetResult struct {
	Failure     PasswordResetFailureKind
	Err         error
	PrincipalID string
	ResetToken  string
	// Silent is set when the email was unknown and nothing was issued.
	Silent         bool
	NotifyErr      error
	RevokedRefresh int64
}

// PasswordResetDeps captures password reset dependencies.
type PasswordResetDeps struct {
	Codes               CodeDeps
	Issue               IssueDeps
	Revocations         RevocationList
	FindByID            func(ctx context.Context, id string) (Principal, error)
	FindByEmail         func(ctx context.Context, email string) (Principal, error)
	FindForLogin        func(ctx context.Context, email string) (Principal, error)
	IsPrincipalNotFound func(error) bool
	VerifyPassword      func(plaintext, digest string) (bool, error)
	HashPassword        func(plaintext string) (string, error)
	UpdatePasswordHash  func(ctx context.Context, id, digest string) error
}

func (d PasswordResetDeps) notFound(err error) bool {
	return d.IsPrincipalNotFound != nil && d.IsPrincipalNotFound(err)
}

// RunRequestPasswordReset issues and mails a reset code. An unknown email
// is a silent success so callers cannot probe for accounts.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) PasswordResetResult {
	email = strings.TrimSpace(email)
	if email == "" {
		return PasswordResetResult{Failure: PasswordResetFailureInput}
	}
	p, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.notFound(err) {
			return PasswordResetResult{Silent: true}
		}
		return PasswordResetResult{Failure: PasswordResetFailureLookup, Err: err}
	}

	code, err := issueCode(ctx, stores.PurposePasswordReset, p.ID, deps.Codes)
	if err != nil {
		return PasswordResetResult{Failure: PasswordResetFailureStore, Err: err, PrincipalID: p.ID}
	}
	return PasswordResetResult{
		PrincipalID: p.ID,
		NotifyErr:   sendCode(ctx, p.Email, stores.PurposePasswordReset, code, deps.Codes),
	}
}

// RunVerifyPasswordResetCode consumes a reset code and issues a persisted
// password-reset credential.
func RunVerifyPasswordResetCode(ctx context.Context, email, code string, deps PasswordResetDeps) PasswordResetResult {
	email = strings.TrimSpace(email)
	if email == "" || code == "" {
		return PasswordResetResult{Failure: PasswordResetFailureInput}
	}
	p, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.notFound(err) {
			return PasswordResetResult{Failure: PasswordResetFailureCode}
		}
		return PasswordResetResult{Failure: PasswordResetFailureLookup, Err: err}
	}
	res := PasswordResetResult{PrincipalID: p.ID}

	switch failure, err := consumeCode(ctx, stores.PurposePasswordReset, p.ID, code, deps.Codes); failure {
	case CodeFailureNone:
	case CodeFailureAttempts:
		res.Failure, res.Err = PasswordResetFailureAttempts, err
		return res
	case CodeFailureStore:
		res.Failure, res.Err = PasswordResetFailureStore, err
		return res
	default:
		res.Failure, res.Err = PasswordResetFailureCode, err
		return res
	}

	token, claims, err := deps.Issue.Codec.Sign(jwt.Claims{
		Subject:    p.ID,
		Kind:       jwt.KindPasswordReset,
		Credential: &jwt.CredentialFields{CredentialID: deps.Issue.NewCredentialID()},
	})
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureIssue, err
		return res
	}

	wctx, cancel := detach(ctx, deps.Issue.WriteTimeout)
	defer cancel()
	if err := deps.Issue.Credentials.Create(wctx, credential.FromClaims(token, claims)); err != nil {
		res.Failure, res.Err = PasswordResetFailurePersist, err
		return res
	}
	res.ResetToken = token
	return res
}

// RunResetPassword spends a reset credential to replace the password. On
// success every refresh and reset credential of the principal is revoked
// and any outstanding reset code is dropped.
func RunResetPassword(ctx context.Context, resetToken, newPassword string, deps PasswordResetDeps) PasswordResetResult {
	if newPassword == "" {
		return PasswordResetResult{Failure: PasswordResetFailureInput}
	}
	claims, err := deps.Issue.Codec.Verify(resetToken, jwt.KindPasswordReset)
	if err != nil {
		return PasswordResetResult{Failure: PasswordResetFailureToken, Err: err}
	}
	res := PasswordResetResult{PrincipalID: claims.Subject}
	if deps.Revocations != nil && deps.Revocations.IsRevoked(resetToken) {
		res.Failure = PasswordResetFailureToken
		return res
	}

	row, err := deps.Issue.Credentials.FindActive(ctx, jwt.KindPasswordReset, claims.Subject, claims.CredentialID())
	if err != nil {
		res.Err = err
		res.Failure = PasswordResetFailureToken
		if !isNotFound(err) {
			res.Failure = PasswordResetFailureLookup
		}
		return res
	}
	if !row.MatchesValue(resetToken) {
		res.Failure = PasswordResetFailureToken
		return res
	}

	p, err := deps.FindByID(ctx, claims.Subject)
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureLookup, err
		return res
	}
	current, err := deps.FindForLogin(ctx, p.Email)
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureLookup, err
		return res
	}
	same, err := deps.VerifyPassword(newPassword, current.PasswordHash)
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureLookup, err
		return res
	}
	if same {
		res.Failure = PasswordResetFailureReuse
		return res
	}
	digest, err := deps.HashPassword(newPassword)
	newPassword = ""
	if err != nil {
		res.Failure, res.Err = PasswordResetFailurePolicy, err
		return res
	}

	wctx, cancel := detach(ctx, deps.Issue.WriteTimeout)
	defer cancel()

	// Revoking the reset credentials first claims the token: of two
	// concurrent resets only one sees a non-zero count.
	n, err := deps.Issue.Credentials.RevokeAllForPrincipal(wctx, p.ID, jwt.KindPasswordReset)
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureUpdate, err
		return res
	}
	if n == 0 {
		res.Failure = PasswordResetFailureToken
		return res
	}
	if deps.Revocations != nil {
		deps.Revocations.MarkRevoked(resetToken, time.Unix(claims.ExpiresAt, 0))
	}

	if err := deps.UpdatePasswordHash(wctx, p.ID, digest); err != nil {
		res.Failure, res.Err = PasswordResetFailureUpdate, err
		return res
	}
	revoked, err := deps.Issue.Credentials.RevokeAllForPrincipal(wctx, p.ID, jwt.KindRefresh)
	if err != nil {
		res.Failure, res.Err = PasswordResetFailureUpdate, err
		return res
	}
	res.RevokedRefresh = revoked
	if err := deps.Codes.Store.Delete(wctx, stores.PurposePasswordReset, p.ID); err != nil {
		res.Err = err
	}
	return res
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, credential.ErrNotFound)
}
