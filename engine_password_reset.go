package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/password"
	"go.uber.org/zap"
)

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	return internalflows.PasswordResetDeps{
		Codes:               e.codeDeps(),
		Issue:               e.issueDeps(),
		Revocations:         e.revocations,
		FindByID:            e.findByID,
		FindByEmail:         e.findByEmail,
		FindForLogin:        e.findForLogin,
		IsPrincipalNotFound: isPrincipalNotFound,
		VerifyPassword:      e.hasher.Verify,
		HashPassword:        e.hasher.Hash,
		UpdatePasswordHash:  e.principals.UpdatePasswordHash,
	}
}

// RequestPasswordReset mails a reset code to email. Unknown addresses are
// a silent success.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	res := e.flows.RequestPasswordReset(ctx, email)
	if res.NotifyErr != nil {
		logger.From(ctx, e.log).Warn("reset code delivery failed",
			logger.PrincipalID(res.PrincipalID), zap.Error(res.NotifyErr))
	}
	if res.Silent {
		logger.From(ctx, e.log).Debug("reset requested for unknown email", logger.Email(email))
	}

	err := e.passwordResetError(ctx, metrics.OpResetRequest, res)
	e.record(ctx, metrics.OpResetRequest, audit.EventResetRequested, res.PrincipalID, "", err)
	return err
}

// VerifyPasswordResetCode spends a reset code and returns a single-use
// password-reset token.
func (e *Engine) VerifyPasswordResetCode(ctx context.Context, email, code string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	res := e.flows.VerifyPasswordResetCode(ctx, email, code)
	err := e.passwordResetError(ctx, metrics.OpResetVerifyCode, res)
	e.record(ctx, metrics.OpResetVerifyCode, audit.EventResetCodeVerified, res.PrincipalID, "", err)
	if err != nil {
		return "", err
	}
	return res.ResetToken, nil
}

// ResetPassword replaces the password of the principal bound to resetToken.
// Every refresh and reset credential of the principal is revoked and any
// outstanding reset code is dropped.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	res := e.flows.ResetPassword(ctx, resetToken, newPassword)
	err := e.passwordResetError(ctx, metrics.OpResetConfirm, res)
	if err == nil {
		e.metrics.Revoked(res.RevokedRefresh + 1)
		log := logger.From(ctx, e.log).With(logger.PrincipalID(res.PrincipalID))
		log.Info("password reset", logger.Count(res.RevokedRefresh))
		if res.Err != nil {
			log.Warn("reset code cleanup failed", zap.Error(res.Err))
		}
	}
	e.record(ctx, metrics.OpResetConfirm, audit.EventPasswordReset, res.PrincipalID, "", err)
	return err
}

func (e *Engine) passwordResetError(ctx context.Context, op string, res internalflows.PasswordResetResult) error {
	var err error
	stage := ""
	switch res.Failure {
	case internalflows.PasswordResetFailureNone:
		return nil
	case internalflows.PasswordResetFailureInput:
		err = ErrInvalidInput
	case internalflows.PasswordResetFailureCode:
		err, stage = ErrOTPInvalid, "code"
	case internalflows.PasswordResetFailureAttempts:
		err, stage = ErrOTPAttemptsExceeded, "code"
	case internalflows.PasswordResetFailureToken:
		err, stage = ErrInvalidToken, "token"
	case internalflows.PasswordResetFailureReuse:
		err = ErrPasswordReuse
	case internalflows.PasswordResetFailurePolicy:
		err, stage = ErrPasswordPolicy, "policy"
		if !errors.Is(res.Err, password.ErrPasswordTooShort) && !errors.Is(res.Err, password.ErrPasswordTooLong) {
			err = unavailable(res.Err)
		}
	case internalflows.PasswordResetFailureLookup:
		err, stage = unavailable(res.Err), "lookup"
	case internalflows.PasswordResetFailureStore:
		err, stage = unavailable(res.Err), "store"
	case internalflows.PasswordResetFailureIssue:
		err, stage = unavailable(res.Err), "issue"
	case internalflows.PasswordResetFailurePersist:
		err, stage = unavailable(res.Err), "persist"
	default:
		err, stage = unavailable(res.Err), "update"
	}
	if stage != "" {
		e.logFailure(ctx, op, stage, res.PrincipalID, err, res.Err)
	}
	return err
}
