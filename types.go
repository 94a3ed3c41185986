package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
)

// PrincipalStatus gates what a principal may do.
type PrincipalStatus uint8

const (
	StatusActive PrincipalStatus = iota
	// StatusPendingApproval principals cannot log in until approved.
	StatusPendingApproval
	// StatusUnverified principals cannot log in until their email is verified.
	StatusUnverified
	StatusDisabled
)

func (s PrincipalStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPendingApproval:
		return "pending_approval"
	case StatusUnverified:
		return "unverified"
	case StatusDisabled:
		return "disabled"
	}
	return "unknown"
}

// Principal is an authenticatable subject owned by the host application.
// PasswordHash is only populated by PrincipalStore.FindForLogin.
type Principal struct {
	ID           string
	Email        string
	PasswordHash string
	Status       PrincipalStatus
	Roles        []string
}

// PrincipalStore is implemented by the host application. Lookups of
// unknown principals return an error wrapping ErrPrincipalNotFound.
type PrincipalStore interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	// FindByEmail never populates PasswordHash.
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindForLogin(ctx context.Context, email string) (*Principal, error)
	UpdatePasswordHash(ctx context.Context, id, digest string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// Notifier delivers rendered messages. See package notify.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuditEvent is one security-relevant outcome delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events from a background dispatcher.
type AuditSink = audit.Sink
