package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/reaper"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single-use: configure it during
// initialization and call Build once.
type Builder struct {
	config     Config
	log        *zap.Logger
	registerer prometheus.Registerer
	now        func() time.Time

	redis       redis.UniversalClient
	principals  PrincipalStore
	hasher      password.Hasher
	notifier    Notifier
	credentials credential.Store
	source      permission.Source
	auditSink   AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithMetricsRegisterer registers the engine collectors with reg.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithClock overrides time.Now for every component. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRedis sets the client backing one-time codes and, unless
// WithCredentialStore is used, credentials.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore sets the host application's principal lookup.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

// WithHasher replaces the default argon2id (+ optional bcrypt) hasher.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithNotifier sets the delivery channel for one-time codes.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithCredentialStore replaces the Redis credential store, e.g. with
// credential.NewPostgresStore.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.credentials = store
	return b
}

// WithPermissionSource sets the role and permission catalog.
func (b *Builder) WithPermissionSource(source permission.Source) *Builder {
	b.source = source
	return b
}

// WithAuditSink sets the audit destination. Only used when Config.Audit is
// enabled; defaults to a zap sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if b.source == nil {
		return nil, errors.New("permission source required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := logger.OrNop(b.log)

	m, err := metrics.New(b.registerer)
	if err != nil {
		return nil, err
	}

	// -------- CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		Issuer: cfg.Tokens.Issuer,
		Keys:   cfg.Tokens.keys(),
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = defaultHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}
	dummy, err := dummyHash(hasher)
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	creds := b.credentials
	if creds == nil {
		creds = credential.NewRedisStore(b.redis, cfg.Store.RedisPrefix, credential.WithClock(now))
	}

	authorizer, err := permission.NewAuthorizer(b.source, permission.Config{
		CacheTTL:  cfg.Permission.CacheTTL,
		AdminRole: cfg.Permission.AdminRole,
		Now:       now,
		Observer:  m,
	})
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(log)
	}

	engine := &Engine{
		config:      cfg,
		log:         log,
		metrics:     m,
		now:         now,
		codec:       codec,
		credentials: creds,
		revocations: revocation.New(revocation.Config{
			DefaultTTL:      cfg.Revocation.DefaultTTL,
			CleanupInterval: cfg.Revocation.CleanupInterval,
			Now:             now,
		}),
		authorizer: authorizer,
		codes:      stores.NewOTPStore(b.redis, cfg.OTP.RedisPrefix, now),
		principals: b.principals,
		hasher:     hasher,
		notifier:   b.notifier,
		dummyHash:  dummy,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			OnDrop:     m.AuditDropped,
			Log:        log,
		}, sink),
	}
	engine.reaper = reaper.New(creds, reaper.Config{
		Interval: cfg.Reaper.Interval,
		Timeout:  cfg.Reaper.Timeout,
		Now:      now,
	}, log, m)
	engine.flows = internalflows.New(internalflows.Deps{
		Login:             engine.loginFlowDeps(),
		Refresh:           engine.refreshFlowDeps(),
		Validate:          engine.validateFlowDeps(),
		Logout:            engine.logoutFlowDeps(),
		EmailVerification: engine.emailVerificationFlowDeps(),
		PasswordReset:     engine.passwordResetFlowDeps(),
	})

	b.built = true
	log.Info("engine built",
		zap.String("issuer", cfg.Tokens.Issuer),
		zap.Bool("audit", cfg.Audit.Enabled),
		zap.Duration("access_ttl", cfg.Tokens.AccessTTL),
		zap.Duration("refresh_ttl", cfg.Tokens.RefreshTTL),
	)
	return engine, nil
}

func defaultHasher(cfg PasswordConfig) (password.Hasher, error) {
	primary, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	if cfg.BcryptCost <= 0 {
		return password.NewChain(primary)
	}
	legacy, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return password.NewChain(primary, legacy)
}

// dummyHash is verified against on unknown-email logins.
func dummyHash(h password.Hasher) (string, error) {
	secret, err := internal.NewSecret(24)
	if err != nil {
		return "", err
	}
	digest, err := h.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("hash dummy password: %w", err)
	}
	return digest, nil
}
