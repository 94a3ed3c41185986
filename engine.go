package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/reaper"
	"github.com/MrEthical07/authcore/revocation"
	"go.uber.org/zap"
)

// Engine is the session lifecycle manager. It is immutable after Build and
// safe for concurrent use.
type Engine struct {
	config      Config
	log         *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	codec       *jwt.Codec
	credentials credential.Store
	revocations *revocation.Cache
	authorizer  *permission.Authorizer
	codes       *stores.OTPStore
	principals  PrincipalStore
	hasher      password.Hasher
	notifier    Notifier
	dummyHash   string
	audit       *audit.Dispatcher
	reaper      *reaper.Reaper
	flows       internalflows.Service
}

// Close stops the reaper and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.reaper != nil {
		e.reaper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Authorizer returns the permission engine sharing this Engine's cache.
func (e *Engine) Authorizer() *permission.Authorizer {
	if e == nil {
		return nil
	}
	return e.authorizer
}

// Reaper returns the expiry reaper. It is not started by Build.
func (e *Engine) Reaper() *reaper.Reaper {
	if e == nil {
		return nil
	}
	return e.reaper
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Authorize returns ErrPermissionDenied unless principalID holds every
// permission in required.
func (e *Engine) Authorize(ctx context.Context, principalID string, required ...string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ok, err := e.authorizer.HasAll(ctx, principalID, required...)
	if err != nil {
		e.log.Error("permission lookup failed", zap.String("principal_id", principalID), zap.Error(err))
		return unavailable(err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// AuthorizeRole returns ErrPermissionDenied unless principalID holds at
// least one of roles through an active assignment.
func (e *Engine) AuthorizeRole(ctx context.Context, principalID string, roles ...string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ok, err := e.authorizer.HasAnyRole(ctx, principalID, roles...)
	if err != nil {
		e.log.Error("role lookup failed", zap.String("principal_id", principalID), zap.Error(err))
		return unavailable(err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

/*
====================================
PRINCIPAL ADAPTERS
====================================
*/

func (e *Engine) findByID(ctx context.Context, id string) (internalflows.Principal, error) {
	return flowPrincipal(e.principals.FindByID(ctx, id))
}

func (e *Engine) findByEmail(ctx context.Context, email string) (internalflows.Principal, error) {
	return flowPrincipal(e.principals.FindByEmail(ctx, email))
}

func (e *Engine) findForLogin(ctx context.Context, email string) (internalflows.Principal, error) {
	return flowPrincipal(e.principals.FindForLogin(ctx, email))
}

func flowPrincipal(p *Principal, err error) (internalflows.Principal, error) {
	if err != nil {
		return internalflows.Principal{}, err
	}
	if p == nil {
		return internalflows.Principal{}, ErrPrincipalNotFound
	}
	return internalflows.Principal{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Status:       uint8(p.Status),
		Roles:        append([]string(nil), p.Roles...),
	}, nil
}

func isPrincipalNotFound(err error) bool {
	return errors.Is(err, ErrPrincipalNotFound)
}

func statusError(status uint8) error {
	switch PrincipalStatus(status) {
	case StatusActive:
		return nil
	case StatusPendingApproval:
		return ErrPendingApproval
	case StatusUnverified:
		return ErrUnverified
	default:
		return ErrDisabled
	}
}

func (e *Engine) issueDeps() internalflows.IssueDeps {
	return internalflows.IssueDeps{
		Codec:           e.codec,
		Credentials:     e.credentials,
		NewCredentialID: newCredentialID,
		WriteTimeout:    e.config.Store.WriteTimeout,
	}
}

func (e *Engine) codeDeps() internalflows.CodeDeps {
	deps := internalflows.CodeDeps{
		Store:        e.codes,
		Pepper:       e.config.OTP.Pepper,
		Digits:       e.config.OTP.Digits,
		TTL:          e.config.OTP.TTL,
		MaxAttempts:  e.config.OTP.MaxAttempts,
		Now:          e.now,
		WriteTimeout: e.config.Store.WriteTimeout,
	}
	if e.notifier != nil {
		deps.Send = e.notifier.Send
	} else {
		deps.Send = func(context.Context, string, string, string) error { return errNoNotifier }
	}
	return deps
}

var errNoNotifier = errors.New("no notifier configured")

/*
====================================
ERROR TRANSLATION
====================================
*/

// unavailable hides a backend failure behind ErrUnavailable while keeping
// its text for logs.
func unavailable(err error) error {
	if err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrKindMismatch):
		return ErrTokenKindMismatch
	default:
		return ErrTokenMalformed
	}
}

func isTokenError(err error) bool {
	return errors.Is(err, jwt.ErrMalformed) ||
		errors.Is(err, jwt.ErrExpired) ||
		errors.Is(err, jwt.ErrKindMismatch) ||
		errors.Is(err, jwt.ErrUnknownKind)
}

func toTokenPair(pair internalflows.IssuedPair) *TokenPair {
	return &TokenPair{
		AccessToken:      pair.Access,
		AccessExpiresAt:  time.Unix(pair.AccessClaims.ExpiresAt, 0),
		RefreshToken:     pair.Refresh,
		RefreshExpiresAt: time.Unix(pair.RefreshClaims.ExpiresAt, 0),
	}
}
