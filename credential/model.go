package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// Credential is the durable record of an issued token.
type Credential struct {
	ID          string
	PrincipalID string
	Kind        jwt.Kind
	ValueDigest [32]byte
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Revoked     bool
}

// Digest returns the value stored in place of a signed token.
func Digest(signed string) [32]byte {
	return sha256.Sum256([]byte(signed))
}

// FromClaims builds an unrevoked row for a freshly signed token.
func FromClaims(signed string, claims jwt.Claims) *Credential {
	return &Credential{
		ID:          claims.CredentialID(),
		PrincipalID: claims.Subject,
		Kind:        claims.Kind,
		ValueDigest: Digest(signed),
		IssuedAt:    time.Unix(claims.IssuedAt, 0),
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0),
	}
}

// MatchesValue reports whether signed hashes to the stored digest.
func (c *Credential) MatchesValue(signed string) bool {
	d := Digest(signed)
	return subtle.ConstantTimeCompare(c.ValueDigest[:], d[:]) == 1
}

// ActiveAt reports whether the row is unrevoked and not expired at now.
// Expiry is strict, matching the token codec: a row is still active during
// the second equal to its ExpiresAt.
func (c *Credential) ActiveAt(now time.Time) bool {
	return !c.Revoked && now.Unix() <= c.ExpiresAt.Unix()
}

func (c *Credential) clone() *Credential {
	cp := *c
	return &cp
}

func validate(c *Credential) error {
	if c == nil {
		return errors.New("credential: nil credential")
	}
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.PrincipalID) == "" {
		return errors.New("credential: id and principal id are required")
	}
	if !c.Kind.Valid() || c.Kind == jwt.KindAccess {
		return errors.New("credential: kind is not persistable")
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return errors.New("credential: expiry must be after issue time")
	}
	return nil
}
