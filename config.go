package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// Config holds every tunable of an Engine. Start from DefaultConfig and
// supply the four signing keys and the OTP pepper.
type Config struct {
	Tokens     TokensConfig
	OTP        OTPConfig
	Password   PasswordConfig
	Permission PermissionConfig
	Revocation RevocationConfig
	Store      StoreConfig
	Reaper     ReaperConfig
	Audit      AuditConfig
	Policy     PolicyConfig
}

/*
====================================
TOKENS CONFIG
====================================
*/

// TokensConfig holds one independent HS256 key and lifetime per credential kind.
type TokensConfig struct {
	Issuer string

	AccessKey        []byte
	RefreshKey       []byte
	PasswordResetKey []byte
	OTPVerifyKey     []byte

	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	PasswordResetTTL time.Duration
	OTPVerifyTTL     time.Duration
}

func (t TokensConfig) keys() map[jwt.Kind]jwt.KeyConfig {
	return map[jwt.Kind]jwt.KeyConfig{
		jwt.KindAccess:        {Key: t.AccessKey, TTL: t.AccessTTL},
		jwt.KindRefresh:       {Key: t.RefreshKey, TTL: t.RefreshTTL},
		jwt.KindPasswordReset: {Key: t.PasswordResetKey, TTL: t.PasswordResetTTL},
		jwt.KindOTPVerify:     {Key: t.OTPVerifyKey, TTL: t.OTPVerifyTTL},
	}
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time codes for email verification and password reset.
type OTPConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	// Pepper keys the HMAC digest of stored codes.
	Pepper      []byte
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id costs for the default hasher. Ignored when
// Builder.WithHasher is used.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// BcryptCost enables verification of legacy bcrypt digests when > 0.
	BcryptCost     int
	UpgradeOnLogin bool
}

/*
====================================
PERMISSION / REVOCATION / STORE
====================================
*/

// PermissionConfig controls the Authorizer cache.
type PermissionConfig struct {
	CacheTTL  time.Duration
	AdminRole string
}

// RevocationConfig controls the in-process revocation list.
type RevocationConfig struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// StoreConfig controls credential persistence.
type StoreConfig struct {
	// WriteTimeout bounds writes detached from caller cancellation.
	WriteTimeout time.Duration
	RedisPrefix  string
}

// ReaperConfig controls the expiry reaper returned by Engine.Reaper.
type ReaperConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// PolicyConfig holds product rules that are not security invariants.
type PolicyConfig struct {
	// AllowedEmailDomains restricts verification email recipients. Empty
	// allows every domain.
	AllowedEmailDomains []string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every non-secret field populated.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Tokens: TokensConfig{
			Issuer:           "authcore",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			PasswordResetTTL: 10 * time.Minute,
			OTPVerifyTTL:     15 * time.Minute,
		},
		OTP: OTPConfig{
			Digits:      6,
			TTL:         15 * time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "authcore:otp",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Permission: PermissionConfig{
			CacheTTL:  5 * time.Minute,
			AdminRole: "admin",
		},
		Revocation: RevocationConfig{
			DefaultTTL:      15 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Store: StoreConfig{
			WriteTimeout: 5 * time.Second,
			RedisPrefix:  "authcore:cred",
		},
		Reaper: ReaperConfig{
			Interval: time.Hour,
			Timeout:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.AccessKey = cloneBytes(cfg.Tokens.AccessKey)
	out.Tokens.RefreshKey = cloneBytes(cfg.Tokens.RefreshKey)
	out.Tokens.PasswordResetKey = cloneBytes(cfg.Tokens.PasswordResetKey)
	out.Tokens.OTPVerifyKey = cloneBytes(cfg.Tokens.OTPVerifyKey)
	out.OTP.Pepper = cloneBytes(cfg.OTP.Pepper)
	out.Policy.AllowedEmailDomains = append([]string(nil), cfg.Policy.AllowedEmailDomains...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Tokens
	for kind, kc := range c.Tokens.keys() {
		if len(kc.Key) < jwt.MinKeyLength {
			return fmt.Errorf("Tokens %s key must be at least %d bytes", kind, jwt.MinKeyLength)
		}
		if kc.TTL < time.Second {
			return fmt.Errorf("Tokens %s TTL must be >= 1s", kind)
		}
	}
	if c.Tokens.AccessTTL >= c.Tokens.RefreshTTL {
		return errors.New("Tokens AccessTTL must be shorter than RefreshTTL")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxAttempts < 0 {
		return errors.New("OTP MaxAttempts must be >= 0")
	}
	if len(c.OTP.Pepper) < 16 {
		return errors.New("OTP Pepper must be at least 16 bytes")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost < 0 {
		return errors.New("Password BcryptCost must be >= 0")
	}

	// Permission
	if c.Permission.CacheTTL < 0 {
		return errors.New("Permission CacheTTL must be >= 0")
	}
	if strings.TrimSpace(c.Permission.AdminRole) == "" {
		return errors.New("Permission AdminRole must not be empty")
	}

	// Revocation / Store / Reaper
	if c.Revocation.DefaultTTL < 0 || c.Revocation.CleanupInterval < 0 {
		return errors.New("Revocation durations must be >= 0")
	}
	if c.Store.WriteTimeout <= 0 {
		return errors.New("Store WriteTimeout must be > 0")
	}
	if c.Reaper.Interval < 0 || c.Reaper.Timeout < 0 {
		return errors.New("Reaper durations must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Policy
	for _, d := range c.Policy.AllowedEmailDomains {
		if strings.TrimSpace(d) == "" || strings.Contains(d, "@") {
			return fmt.Errorf("Policy AllowedEmailDomains entry %q is invalid", d)
		}
	}
	return nil
}

// emailAllowed reports whether email's domain passes the allow-list.
func (p PolicyConfig) emailAllowed(email string) bool {
	if len(p.AllowedEmailDomains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range p.AllowedEmailDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
