package flows

import (
	"context"

	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
)

// EmailVerificationFailureKind classifies email verification failures.
type EmailVerificationFailureKind int

const (
	EmailVerificationFailureNone EmailVerificationFailureKind = iota
	EmailVerificationFailureInput
	EmailVerificationFailurePrincipal
	EmailVerificationFailureLookup
	EmailVerificationFailureDomain
	EmailVerificationFailureStore
	EmailVerificationFailureIssue
	EmailVerificationFailureToken
	EmailVerificationFailureCode
	EmailVerificationFailureAttempts
	EmailVerificationFailureMark
)

// EmailVerificationResult carries the outcome of either verification step.
type EmailVerificationResult struct {
	Failure     EmailVerificationFailureKind
	Err         error
	PrincipalID string
	VerifyToken string
	// NotifyErr is a delivery failure that did not abort the request.
	NotifyErr error
}

// EmailVerificationDeps captures email verification dependencies.
type EmailVerificationDeps struct {
	Codes               CodeDeps
	Codec               TokenCodec
	FindByID            func(ctx context.Context, id string) (Principal, error)
	IsPrincipalNotFound func(error) bool
	// AllowedEmail gates recipients; nil allows every address.
	AllowedEmail      func(email string) bool
	MarkEmailVerified func(ctx context.Context, id string) error
}

// RunRequestEmailVerification issues a code for principalID, mails it and
// returns an otp-verify token binding the code to the principal.
func RunRequestEmailVerification(ctx context.Context, principalID string, deps EmailVerificationDeps) EmailVerificationResult {
	if principalID == "" {
		return EmailVerificationResult{Failure: EmailVerificationFailureInput}
	}
	p, err := deps.FindByID(ctx, principalID)
	if err != nil {
		if deps.IsPrincipalNotFound != nil && deps.IsPrincipalNotFound(err) {
			return EmailVerificationResult{Failure: EmailVerificationFailurePrincipal, Err: err}
		}
		return EmailVerificationResult{Failure: EmailVerificationFailureLookup, Err: err}
	}
	res := EmailVerificationResult{PrincipalID: p.ID}
	if deps.AllowedEmail != nil && !deps.AllowedEmail(p.Email) {
		res.Failure = EmailVerificationFailureDomain
		return res
	}

	token, _, err := deps.Codec.Sign(jwt.Claims{
		Subject: p.ID,
		Kind:    jwt.KindOTPVerify,
		OTP:     &jwt.OTPFields{Purpose: stores.PurposeEmailVerify.String()},
	})
	if err != nil {
		res.Failure = EmailVerificationFailureIssue
		res.Err = err
		return res
	}

	code, err := issueCode(ctx, stores.PurposeEmailVerify, p.ID, deps.Codes)
	if err != nil {
		res.Failure = EmailVerificationFailureStore
		res.Err = err
		return res
	}
	res.NotifyErr = sendCode(ctx, p.Email, stores.PurposeEmailVerify, code, deps.Codes)
	res.VerifyToken = token
	return res
}

// RunConfirmEmailVerification consumes code for the principal named by
// verifyToken and marks its email verified.
func RunConfirmEmailVerification(ctx context.Context, verifyToken, code string, deps EmailVerificationDeps) EmailVerificationResult {
	claims, err := deps.Codec.Verify(verifyToken, jwt.KindOTPVerify)
	if err != nil {
		return EmailVerificationResult{Failure: EmailVerificationFailureToken, Err: err}
	}
	res := EmailVerificationResult{PrincipalID: claims.Subject}
	purpose, ok := stores.ParsePurpose(claims.OTP.Purpose)
	if !ok || purpose != stores.PurposeEmailVerify {
		res.Failure = EmailVerificationFailureToken
		return res
	}

	switch failure, err := consumeCode(ctx, purpose, claims.Subject, code, deps.Codes); failure {
	case CodeFailureNone:
	case CodeFailureAttempts:
		res.Failure, res.Err = EmailVerificationFailureAttempts, err
		return res
	case CodeFailureStore:
		res.Failure, res.Err = EmailVerificationFailureStore, err
		return res
	default:
		res.Failure, res.Err = EmailVerificationFailureCode, err
		return res
	}

	wctx, cancel := detach(ctx, deps.Codes.WriteTimeout)
	defer cancel()
	if err := deps.MarkEmailVerified(wctx, claims.Subject); err != nil {
		res.Failure = EmailVerificationFailureMark
		res.Err = err
	}
	return res
}
