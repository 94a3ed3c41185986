package jwt

import (
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the credential a set of claims belongs to.
type Kind string

const (
	// KindAccess is a short-lived bearer credential; never persisted.
	KindAccess Kind = "access"
	// KindRefresh is a persisted, rotating credential used to mint new access tokens.
	KindRefresh Kind = "refresh"
	// KindPasswordReset authorizes exactly one password change after OTP verification.
	KindPasswordReset Kind = "password_reset"
	// KindOTPVerify binds an outstanding email verification code to a principal.
	KindOTPVerify Kind = "otp_verify"
)

// Kinds lists every supported credential kind.
var Kinds = []Kind{KindAccess, KindRefresh, KindPasswordReset, KindOTPVerify}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

func (k Kind) String() string { return string(k) }

// AccessFields carries the access-token payload.
type AccessFields struct {
	Roles []string
	Email string
}

// CredentialFields links a token to its persisted credential row. Present on
// refresh and password-reset tokens.
type CredentialFields struct {
	CredentialID string
}

// OTPFields carries the purpose of the code an otp-verify token is bound to.
type OTPFields struct {
	Purpose string
}

// Claims is the decoded payload of a credential. Exactly one of the
// kind-specific fields is set, selected by Kind.
type Claims struct {
	ID        string
	Subject   string
	Kind      Kind
	IssuedAt  int64
	ExpiresAt int64

	Access     *AccessFields
	Credential *CredentialFields
	OTP        *OTPFields
}

// CredentialID returns the embedded credential id, or "" for kinds without one.
func (c Claims) CredentialID() string {
	if c.Credential == nil {
		return ""
	}
	return c.Credential.CredentialID
}

// validatePayload checks that the kind-specific payload matches Kind.
func (c Claims) validatePayload() error {
	if strings.TrimSpace(c.Subject) == "" {
		return ErrInvalidClaims
	}
	switch c.Kind {
	case KindAccess:
		if c.Access == nil || c.Credential != nil || c.OTP != nil {
			return ErrInvalidClaims
		}
	case KindRefresh, KindPasswordReset:
		if c.Credential == nil || c.Credential.CredentialID == "" || c.Access != nil || c.OTP != nil {
			return ErrInvalidClaims
		}
	case KindOTPVerify:
		if c.OTP == nil || c.OTP.Purpose == "" || c.Access != nil || c.Credential != nil {
			return ErrInvalidClaims
		}
	default:
		return ErrInvalidClaims
	}
	return nil
}

// wireClaims is the JSON shape embedded in the token.
type wireClaims struct {
	Kind         Kind     `json:"knd"`
	Roles        []string `json:"roles,omitempty"`
	Email        string   `json:"email,omitempty"`
	CredentialID string   `json:"cid,omitempty"`
	Purpose      string   `json:"pur,omitempty"`
	jwt.RegisteredClaims
}

func toWire(c Claims, issuer string) *wireClaims {
	w := &wireClaims{
		Kind: c.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Subject:   c.Subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(unixTime(c.IssuedAt)),
			ExpiresAt: jwt.NewNumericDate(unixTime(c.ExpiresAt)),
		},
	}
	switch {
	case c.Access != nil:
		if len(c.Access.Roles) > 0 {
			w.Roles = append([]string(nil), c.Access.Roles...)
		}
		w.Email = c.Access.Email
	case c.Credential != nil:
		w.CredentialID = c.Credential.CredentialID
	case c.OTP != nil:
		w.Purpose = c.OTP.Purpose
	}
	return w
}

func fromWire(w *wireClaims) (Claims, error) {
	if w.IssuedAt == nil || w.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	c := Claims{
		ID:        w.ID,
		Subject:   w.Subject,
		Kind:      w.Kind,
		IssuedAt:  w.IssuedAt.Unix(),
		ExpiresAt: w.ExpiresAt.Unix(),
	}
	switch w.Kind {
	case KindAccess:
		c.Access = &AccessFields{Email: w.Email}
		if len(w.Roles) > 0 {
			c.Access.Roles = w.Roles
		}
	case KindRefresh, KindPasswordReset:
		c.Credential = &CredentialFields{CredentialID: w.CredentialID}
	case KindOTPVerify:
		c.OTP = &OTPFields{Purpose: w.Purpose}
	default:
		return Claims{}, ErrMalformed
	}
	if err := c.validatePayload(); err != nil {
		return Claims{}, ErrMalformed
	}
	return c, nil
}
