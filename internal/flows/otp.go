package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/stores"
)

// CodeDeps is shared by the OTP-gated flows.
type CodeDeps struct {
	Store       CodeStore
	Pepper      []byte
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
	// Send delivers the code. Its failure is reported but never undoes the
	// stored code.
	Send         func(ctx context.Context, to, subject, body string) error
	WriteTimeout time.Duration
}

// CodeFailure classifies a failed consume.
type CodeFailure int

const (
	CodeFailureNone CodeFailure = iota
	// CodeFailureInvalid covers missing, expired, used and mismatching codes.
	CodeFailureInvalid
	CodeFailureAttempts
	CodeFailureStore
)

// issueCode stores the digest of a fresh code for p, replacing any
// outstanding code of the same purpose, and returns the plaintext.
func issueCode(ctx context.Context, purpose stores.Purpose, principalID string, deps CodeDeps) (string, error) {
	code, err := internal.NewOTP(deps.Digits)
	if err != nil {
		return "", err
	}
	record := &stores.OTPRecord{
		PrincipalID: principalID,
		Purpose:     purpose,
		Digest:      internal.HashOTP(deps.Pepper, purpose.String(), principalID, code),
		ExpiresAt:   deps.Now().Add(deps.TTL).Unix(),
	}

	wctx, cancel := detach(ctx, deps.WriteTimeout)
	defer cancel()
	if err := deps.Store.Issue(wctx, record); err != nil {
		return "", err
	}
	return code, nil
}

// consumeCode spends code for principalID. A code satisfies at most one
// call that returns CodeFailureNone.
func consumeCode(ctx context.Context, purpose stores.Purpose, principalID, code string, deps CodeDeps) (CodeFailure, error) {
	if code == "" || len(code) != deps.Digits {
		return CodeFailureInvalid, nil
	}
	digest := internal.HashOTP(deps.Pepper, purpose.String(), principalID, code)

	wctx, cancel := detach(ctx, deps.WriteTimeout)
	defer cancel()
	_, err := deps.Store.Consume(wctx, purpose, principalID, digest, deps.MaxAttempts)
	switch {
	case err == nil:
		return CodeFailureNone, nil
	case errors.Is(err, stores.ErrOTPAttemptsExceeded):
		return CodeFailureAttempts, err
	case errors.Is(err, stores.ErrOTPRedisUnavailable):
		return CodeFailureStore, err
	default:
		return CodeFailureInvalid, err
	}
}

func codeBody(purpose stores.Purpose, code string, ttl time.Duration) (string, string) {
	minutes := int(ttl / time.Minute)
	switch purpose {
	case stores.PurposePasswordReset:
		return "Password reset code", fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, minutes)
	default:
		return "Verify your email", fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
	}
}

func sendCode(ctx context.Context, to string, purpose stores.Purpose, code string, deps CodeDeps) error {
	if deps.Send == nil {
		return nil
	}
	subject, body := codeBody(purpose, code, deps.TTL)
	return deps.Send(ctx, to, subject, body)
}
