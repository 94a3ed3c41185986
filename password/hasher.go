package password

import (
	"errors"
	"fmt"
)

// DefaultMaxPasswordBytes bounds hashing work for oversized input.
const DefaultMaxPasswordBytes = 1024

const minPassBytes = 10

var (
	// ErrPasswordTooShort is returned by Hash for input under ten bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned for input over the configured maximum.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned when a stored digest cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher is the one-way password comparison used by login and reset.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encodedHash string) (bool, error)
}

// Scheme is a Hasher that can tell its own digests apart.
type Scheme interface {
	Hasher
	Recognizes(encodedHash string) bool
}

// Chain hashes with its primary scheme and verifies with whichever scheme
// produced the stored digest, so legacy bcrypt hashes keep working after a
// move to Argon2id.
type Chain struct {
	primary Scheme
	legacy  []Scheme
}

var _ Hasher = (*Chain)(nil)

// NewChain returns a Chain. primary is required.
func NewChain(primary Scheme, legacy ...Scheme) (*Chain, error) {
	if primary == nil {
		return nil, errors.New("password: primary scheme is required")
	}
	return &Chain{primary: primary, legacy: legacy}, nil
}

// Hash implements Hasher using the primary scheme.
func (c *Chain) Hash(plaintext string) (string, error) {
	return c.primary.Hash(plaintext)
}

// Verify implements Hasher.
func (c *Chain) Verify(plaintext, encodedHash string) (bool, error) {
	if c.primary.Recognizes(encodedHash) {
		return c.primary.Verify(plaintext, encodedHash)
	}
	for _, s := range c.legacy {
		if s.Recognizes(encodedHash) {
			return s.Verify(plaintext, encodedHash)
		}
	}
	return false, fmt.Errorf("%w: unrecognized scheme", ErrMalformedHash)
}

// NeedsRehash reports whether encodedHash should be replaced by a primary
// hash on the next successful login.
func (c *Chain) NeedsRehash(encodedHash string) bool {
	if !c.primary.Recognizes(encodedHash) {
		return true
	}
	if a, ok := c.primary.(*Argon2); ok {
		upgrade, err := a.NeedsUpgrade(encodedHash)
		return err == nil && upgrade
	}
	return false
}

func checkLength(plaintext string, max int) error {
	if len(plaintext) < minPassBytes {
		return ErrPasswordTooShort
	}
	if len(plaintext) > max {
		return ErrPasswordTooLong
	}
	return nil
}
