package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/permission"
)

// Kind classifies every error the Engine returns.
type Kind uint8

const (
	// KindInternal is a store or codec failure not attributable to the caller.
	KindInternal Kind = iota
	// KindValidation is malformed caller input.
	KindValidation
	// KindUnauthenticated is a missing, invalid or expired credential.
	KindUnauthenticated
	// KindForbidden is an authenticated principal lacking access.
	KindForbidden
	// KindConflict is a uniqueness violation.
	KindConflict
	// KindNotFound is an absent referenced entity.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a sentinel error carrying its Kind. Compare with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

var (
	ErrInvalidInput       = newError(KindValidation, "invalid input")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid credentials")
	// ErrInvalidToken is the uniform refresh failure and the access failure
	// for revoked tokens.
	ErrInvalidToken        = newError(KindUnauthenticated, "invalid token")
	ErrTokenExpired        = newError(KindUnauthenticated, "token expired")
	ErrTokenMalformed      = newError(KindUnauthenticated, "malformed token")
	ErrTokenKindMismatch   = newError(KindUnauthenticated, "token kind mismatch")
	ErrOTPInvalid          = newError(KindUnauthenticated, "invalid or expired code")
	ErrOTPAttemptsExceeded = newError(KindUnauthenticated, "code attempts exceeded")
	ErrPendingApproval     = newError(KindForbidden, "principal pending approval")
	ErrUnverified          = newError(KindForbidden, "principal email not verified")
	ErrDisabled            = newError(KindForbidden, "principal disabled")
	ErrEmailNotAllowed     = newError(KindForbidden, "email domain not allowed")
	ErrPermissionDenied    = newError(KindForbidden, "permission denied")
	ErrPasswordReuse       = newError(KindValidation, "new password must differ from the current password")
	ErrPasswordPolicy      = newError(KindValidation, "password does not meet policy")
	ErrPrincipalNotFound   = newError(KindNotFound, "principal not found")
	ErrUnavailable         = newError(KindInternal, "authentication backend unavailable")
	ErrEngineNotReady      = newError(KindInternal, "engine not initialized")
)

// KindOf classifies err. Sub-package sentinels that may surface through the
// Authorizer are recognised too; anything unknown is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	switch {
	case errors.Is(err, permission.ErrConflict), errors.Is(err, credential.ErrDuplicate):
		return KindConflict
	case errors.Is(err, permission.ErrNotFound):
		return KindNotFound
	case errors.Is(err, permission.ErrFrozen):
		return KindValidation
	}
	return KindInternal
}
