package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/metrics"
	"go.uber.org/zap"
)

func (e *Engine) emailVerificationFlowDeps() internalflows.EmailVerificationDeps {
	return internalflows.EmailVerificationDeps{
		Codes:               e.codeDeps(),
		Codec:               e.codec,
		FindByID:            e.findByID,
		IsPrincipalNotFound: isPrincipalNotFound,
		AllowedEmail:        e.config.Policy.emailAllowed,
		MarkEmailVerified:   e.principals.MarkEmailVerified,
	}
}

// RequestEmailVerification mails a fresh code to the principal, replacing
// any outstanding one, and returns an otp-verify token to present with the
// code. A delivery failure is logged; the code stays valid.
func (e *Engine) RequestEmailVerification(ctx context.Context, principalID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	res := e.flows.RequestEmailVerification(ctx, principalID)
	if res.NotifyErr != nil {
		logger.From(ctx, e.log).Warn("verification code delivery failed",
			logger.PrincipalID(res.PrincipalID), zap.Error(res.NotifyErr))
	}

	err := e.emailVerificationError(ctx, metrics.OpEmailVerifyRequest, res)
	e.record(ctx, metrics.OpEmailVerifyRequest, audit.EventEmailVerifyRequested, res.PrincipalID, "", err)
	if err != nil {
		return "", err
	}
	return res.VerifyToken, nil
}

// ConfirmEmailVerification spends code for the principal bound to
// verifyToken and marks its email verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verifyToken, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	res := e.flows.ConfirmEmailVerification(ctx, verifyToken, code)
	err := e.emailVerificationError(ctx, metrics.OpEmailVerifyConfirm, res)
	e.record(ctx, metrics.OpEmailVerifyConfirm, audit.EventEmailVerified, res.PrincipalID, "", err)
	return err
}

func (e *Engine) emailVerificationError(ctx context.Context, op string, res internalflows.EmailVerificationResult) error {
	var err error
	stage := ""
	switch res.Failure {
	case internalflows.EmailVerificationFailureNone:
		return nil
	case internalflows.EmailVerificationFailureInput:
		err = ErrInvalidInput
	case internalflows.EmailVerificationFailurePrincipal:
		err = ErrPrincipalNotFound
	case internalflows.EmailVerificationFailureDomain:
		err = ErrEmailNotAllowed
	case internalflows.EmailVerificationFailureToken:
		err, stage = ErrInvalidToken, "token"
		if res.Err != nil {
			err = tokenError(res.Err)
		}
	case internalflows.EmailVerificationFailureCode:
		err, stage = ErrOTPInvalid, "code"
	case internalflows.EmailVerificationFailureAttempts:
		err, stage = ErrOTPAttemptsExceeded, "code"
	case internalflows.EmailVerificationFailureLookup:
		err, stage = unavailable(res.Err), "lookup"
	case internalflows.EmailVerificationFailureStore:
		err, stage = unavailable(res.Err), "store"
	case internalflows.EmailVerificationFailureIssue:
		err, stage = unavailable(res.Err), "issue"
	default:
		err, stage = unavailable(res.Err), "mark"
	}
	if stage != "" {
		e.logFailure(ctx, op, stage, res.PrincipalID, err, res.Err)
	}
	return err
}
