package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/metrics"
	"go.uber.org/zap"
)

// auditReason is the stable reason string recorded for a failed operation.
func auditReason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch e {
		case ErrInvalidCredentials:
			return "invalid_credentials"
		case ErrInvalidToken, ErrTokenMalformed:
			return "invalid_token"
		case ErrTokenExpired:
			return "token_expired"
		case ErrTokenKindMismatch:
			return "token_kind_mismatch"
		case ErrOTPInvalid:
			return "otp_invalid"
		case ErrOTPAttemptsExceeded:
			return "attempts_exceeded"
		case ErrPendingApproval:
			return "pending_approval"
		case ErrUnverified:
			return "unverified"
		case ErrDisabled:
			return "disabled"
		case ErrEmailNotAllowed:
			return "email_not_allowed"
		case ErrPasswordReuse:
			return "password_reuse"
		case ErrPasswordPolicy:
			return "password_policy"
		case ErrPrincipalNotFound:
			return "principal_not_found"
		case ErrInvalidInput:
			return "invalid_input"
		}
	}
	if errors.Is(err, ErrUnavailable) {
		return "backend_unavailable"
	}
	return "internal_error"
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case KindOf(err) == KindInternal:
		return metrics.ResultError
	default:
		return metrics.ResultFailure
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	principalID string,
	credentialID string,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, audit.Event{
		Timestamp:    e.now().UTC(),
		Type:         eventType,
		PrincipalID:  principalID,
		CredentialID: credentialID,
		Success:      err == nil,
		Reason:       auditReason(err),
		Metadata:     metadata,
	})
}

// record counts the outcome of op and, when event is set, audits it.
func (e *Engine) record(ctx context.Context, op, event, principalID, credentialID string, err error) {
	e.metrics.Op(op, resultOf(err))
	if event != "" {
		e.emitAudit(ctx, event, principalID, credentialID, err, nil)
	}
}

// logFailure logs backend failures at error level and caller failures at
// debug. stage names the flow step that failed.
func (e *Engine) logFailure(ctx context.Context, op, stage, principalID string, public, cause error) {
	log := logger.From(ctx, e.log).With(logger.Op(op), zap.String("stage", stage))
	if principalID != "" {
		log = log.With(logger.PrincipalID(principalID))
	}
	if cause == nil {
		cause = public
	}
	if KindOf(public) == KindInternal {
		log.Error("operation failed", zap.Error(cause))
		return
	}
	log.Debug("operation rejected", zap.Error(cause))
}
