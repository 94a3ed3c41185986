package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newCredentialID() string {
	return uuid.NewString()
}

type rehasher interface {
	NeedsRehash(digest string) bool
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Issue:               e.issueDeps(),
		FindForLogin:        e.findForLogin,
		IsPrincipalNotFound: isPrincipalNotFound,
		VerifyPassword:      e.hasher.Verify,
		DummyHash:           e.dummyHash,
		StatusError:         statusError,
	}
	if r, ok := e.hasher.(rehasher); ok && e.config.Password.UpgradeOnLogin {
		deps.NeedsRehash = r.NeedsRehash
		deps.HashPassword = e.hasher.Hash
		deps.UpdatePasswordHash = e.principals.UpdatePasswordHash
	}
	return deps
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	return internalflows.RefreshDeps{
		Issue:       e.issueDeps(),
		Revocations: e.revocations,
		FindByID:    e.findByID,
		StatusError: statusError,
	}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		Codec:       e.codec,
		Revocations: e.revocations,
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		Codec:        e.codec,
		Credentials:  e.credentials,
		Revocations:  e.revocations,
		WriteTimeout: e.config.Store.WriteTimeout,
	}
}

// Login verifies email and password and issues an access token plus a
// persisted refresh credential. Unknown emails and wrong passwords both
// return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := e.flows.Login(ctx, email, password)
	if res.RehashErr != nil {
		logger.From(ctx, e.log).Warn("password rehash failed",
			logger.PrincipalID(res.PrincipalID), zap.Error(res.RehashErr))
	}

	var err error
	switch res.Failure {
	case internalflows.LoginFailureNone:
	case internalflows.LoginFailureInput:
		err = ErrInvalidInput
	case internalflows.LoginFailureCredentials:
		err = ErrInvalidCredentials
	case internalflows.LoginFailureStatus:
		err = res.Err
	case internalflows.LoginFailureLookup:
		err = unavailable(res.Err)
		e.logFailure(ctx, metrics.OpLogin, "lookup", "", err, res.Err)
	case internalflows.LoginFailureIssue:
		err = unavailable(res.Err)
		e.logFailure(ctx, metrics.OpLogin, "issue", res.PrincipalID, err, res.Err)
	default:
		err = unavailable(res.Err)
		e.logFailure(ctx, metrics.OpLogin, "persist", res.PrincipalID, err, res.Err)
	}

	e.record(ctx, metrics.OpLogin, audit.EventLogin, res.PrincipalID, res.Pair.RefreshClaims.CredentialID(), err)
	if err != nil {
		return nil, err
	}
	return toTokenPair(res.Pair), nil
}

// Refresh rotates a refresh token. Every token-state failure is reported as
// ErrInvalidToken; only backend failures are distinguishable.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := e.flows.Refresh(ctx, refreshToken)

	var err error
	event := audit.EventRefresh
	switch res.Failure {
	case internalflows.RefreshFailureNone:
		e.metrics.Revoked(1)
	case internalflows.RefreshFailureLookup, internalflows.RefreshFailureIssue, internalflows.RefreshFailureRotate:
		err = unavailable(res.Err)
		e.logFailure(ctx, metrics.OpRefresh, res.Failure.String(), res.PrincipalID, err, res.Err)
	case internalflows.RefreshFailureReuse:
		err = ErrInvalidToken
		event = audit.EventRefreshReuse
		logger.From(ctx, e.log).Warn("refresh credential reused",
			logger.PrincipalID(res.PrincipalID), logger.CredentialID(res.CredentialID))
	default:
		err = ErrInvalidToken
		e.logFailure(ctx, metrics.OpRefresh, res.Failure.String(), res.PrincipalID, err, res.Err)
	}

	e.record(ctx, metrics.OpRefresh, event, res.PrincipalID, res.CredentialID, err)
	if err != nil {
		return nil, err
	}
	return toTokenPair(res.Pair), nil
}

// ValidateAccess verifies an access token and checks the local deny-list.
// Unlike Refresh, failures are specific: ErrTokenMalformed, ErrTokenExpired,
// ErrTokenKindMismatch, or ErrInvalidToken for a revoked token.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	res := e.flows.Validate(ctx, accessToken)
	e.metrics.ObserveValidate(time.Since(start))

	var err error
	switch res.Failure {
	case internalflows.ValidateFailureNone:
	case internalflows.ValidateFailureRevoked:
		err = ErrInvalidToken
	default:
		err = tokenError(res.Err)
	}
	e.metrics.Op(metrics.OpValidateAccess, resultOf(err))
	if err != nil {
		return nil, err
	}
	claims := res.Claims
	return &claims, nil
}

// Logout revokes exactly the presented refresh credential. When accessToken
// is non-empty and belongs to the same principal it is deny-listed for the
// rest of its lifetime.
func (e *Engine) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	res := e.flows.Logout(ctx, refreshToken, accessToken)

	var err error
	switch {
	case res.Err == nil:
		e.metrics.Revoked(1)
		if res.AccessDenied {
			e.metrics.Revoked(1)
		}
	case isTokenError(res.Err):
		err = ErrInvalidToken
		e.logFailure(ctx, metrics.OpLogout, "decode", "", err, res.Err)
	default:
		err = unavailable(res.Err)
		e.logFailure(ctx, metrics.OpLogout, "revoke", res.PrincipalID, err, res.Err)
	}

	e.record(ctx, metrics.OpLogout, audit.EventLogout, res.PrincipalID, res.CredentialID, err)
	return err
}

// LogoutAll revokes every refresh credential of principalID.
func (e *Engine) LogoutAll(ctx context.Context, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" {
		return ErrInvalidInput
	}
	n, err := e.flows.LogoutAll(ctx, principalID)
	if err != nil {
		cause := err
		err = unavailable(cause)
		e.logFailure(ctx, metrics.OpLogoutAll, "revoke", principalID, err, cause)
	} else {
		e.metrics.Revoked(n)
		logger.From(ctx, e.log).Info("revoked all refresh credentials",
			logger.PrincipalID(principalID), logger.Count(n))
	}

	e.record(ctx, metrics.OpLogoutAll, audit.EventLogoutAll, principalID, "", err)
	return err
}
