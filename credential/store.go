package credential

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

var (
	// ErrNotFound is returned when no active credential matches a lookup, or
	// when Rotate finds the old credential already revoked or expired.
	ErrNotFound = errors.New("credential: not found")
	// ErrDuplicate is returned when a credential id is already taken.
	ErrDuplicate = errors.New("credential: duplicate id")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("credential: store unavailable")
)

// Store is the durable credential record.
//
// Revoke and RevokeAllForPrincipal are idempotent: revoking an unknown or
// already revoked credential is not an error.
type Store interface {
	Create(ctx context.Context, c *Credential) error
	// FindActive returns the unrevoked, unexpired credential of kind with the
	// given id owned by principalID, or ErrNotFound.
	FindActive(ctx context.Context, kind jwt.Kind, principalID, credentialID string) (*Credential, error)
	// Rotate revokes oldID and inserts next as one atomic step. It returns
	// ErrNotFound without inserting when oldID is no longer active.
	Rotate(ctx context.Context, principalID, oldID string, next *Credential) error
	Revoke(ctx context.Context, credentialID string) error
	RevokeAllForPrincipal(ctx context.Context, principalID string, kind jwt.Kind) (int64, error)
	// PurgeExpiredBefore deletes rows whose expiry is strictly before now and
	// returns how many were removed.
	PurgeExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// FindActiveRefresh looks up an active refresh credential.
func FindActiveRefresh(ctx context.Context, s Store, principalID, credentialID string) (*Credential, error) {
	return s.FindActive(ctx, jwt.KindRefresh, principalID, credentialID)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for expiry filtering.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateNext(principalID string, next *Credential) error {
	if err := validate(next); err != nil {
		return err
	}
	if next.PrincipalID != principalID {
		return errors.New("credential: rotated credential must keep its principal")
	}
	return nil
}
