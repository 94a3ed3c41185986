package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed is returned for tokens that fail the structural pre-check,
	// cannot be decoded, or whose signature does not verify.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrExpired is returned for authentic tokens whose expiry has passed.
	ErrExpired = errors.New("jwt: token expired")
	// ErrKindMismatch is returned for authentic tokens of a different kind
	// than the verifier expected.
	ErrKindMismatch = errors.New("jwt: token kind mismatch")
	// ErrInvalidClaims is returned by Sign when the payload does not match its kind.
	ErrInvalidClaims = errors.New("jwt: invalid claims for kind")
	// ErrUnknownKind is returned when no key is configured for a kind.
	ErrUnknownKind = errors.New("jwt: no key configured for kind")
)

const (
	// MinTokenLength is the shortest string the structural pre-check accepts.
	MinTokenLength = 32
	// MaxTokenLength is the longest string the structural pre-check accepts.
	MaxTokenLength = 8192
	// MinKeyLength is the minimum HS256 key size accepted by NewCodec.
	MinKeyLength = 32
)

var signingMethod = jwt.SigningMethodHS256

// KeyConfig is the signing key and lifetime for one credential kind.
type KeyConfig struct {
	Key []byte
	TTL time.Duration
}

// Config configures a Codec.
type Config struct {
	Issuer string
	Keys   map[Kind]KeyConfig
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies claims with an independent key per kind.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	issuer string
	keys   map[Kind]KeyConfig
	now    func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("jwt: at least one signing key is required")
	}
	keys := make(map[Kind]KeyConfig, len(cfg.Keys))
	for kind, kc := range cfg.Keys {
		if !kind.Valid() {
			return nil, fmt.Errorf("jwt: unsupported kind %q", kind)
		}
		if len(kc.Key) < MinKeyLength {
			return nil, fmt.Errorf("jwt: %s key must be at least %d bytes", kind, MinKeyLength)
		}
		if kc.TTL < time.Second {
			return nil, fmt.Errorf("jwt: %s ttl must be at least one second", kind)
		}
		for other, okc := range keys {
			if bytes.Equal(okc.Key, kc.Key) {
				return nil, fmt.Errorf("jwt: %s and %s share a signing key", kind, other)
			}
		}
		keys[kind] = KeyConfig{Key: append([]byte(nil), kc.Key...), TTL: kc.TTL}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		issuer: strings.TrimSpace(cfg.Issuer),
		keys:   keys,
		now:    now,
	}, nil
}

// Sign stamps claims with the issue/expiry times for its kind and signs them.
// The returned Claims are exactly what Verify will yield for the token.
func (c *Codec) Sign(claims Claims) (string, Claims, error) {
	kc, ok := c.keys[claims.Kind]
	if !ok {
		return "", Claims{}, ErrUnknownKind
	}
	return sign(claims, kc.Key, kc.TTL, c.now(), c.issuer)
}

// Verify checks token against the key for expected and returns its claims.
//
// The unverified kind claim only selects which key to try: a token that
// names another configured kind and verifies under that kind's key yields
// ErrKindMismatch, or ErrExpired once it is past expiry; anything else that fails verification is ErrMalformed.
func (c *Codec) Verify(token string, expected Kind) (Claims, error) {
	kc, ok := c.keys[expected]
	if !ok {
		return Claims{}, ErrUnknownKind
	}
	if err := precheck(token); err != nil {
		return Claims{}, err
	}

	claimed, err := peekKind(token)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	if claimed != expected {
		other, ok := c.keys[claimed]
		if !ok {
			return Claims{}, ErrMalformed
		}
		switch _, err := verify(token, other.Key, claimed, c.now(), c.issuer); {
		case err == nil:
			return Claims{}, ErrKindMismatch
		case errors.Is(err, ErrExpired):
			return Claims{}, ErrExpired
		default:
			return Claims{}, ErrMalformed
		}
	}

	return verify(token, kc.Key, expected, c.now(), c.issuer)
}

// SignWithKey signs claims with key, setting IssuedAt to now and ExpiresAt to
// IssuedAt plus ttl in whole seconds.
func SignWithKey(claims Claims, key []byte, ttl time.Duration, now time.Time) (string, Claims, error) {
	return sign(claims, key, ttl, now, "")
}

// VerifyWithKey verifies token with key and checks it is an unexpired token of
// kind expected, evaluated at now.
func VerifyWithKey(token string, key []byte, expected Kind, now time.Time) (Claims, error) {
	if err := precheck(token); err != nil {
		return Claims{}, err
	}
	return verify(token, key, expected, now, "")
}

func sign(claims Claims, key []byte, ttl time.Duration, now time.Time, issuer string) (string, Claims, error) {
	if len(key) == 0 {
		return "", Claims{}, errors.New("jwt: empty signing key")
	}
	ttlSeconds := int64(ttl / time.Second)
	if ttlSeconds < 1 {
		return "", Claims{}, errors.New("jwt: ttl must be at least one second")
	}
	if err := claims.validatePayload(); err != nil {
		return "", Claims{}, err
	}

	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = claims.IssuedAt + ttlSeconds
	if claims.Access != nil && len(claims.Access.Roles) == 0 {
		claims.Access = &AccessFields{Email: claims.Access.Email}
	}

	token := jwt.NewWithClaims(signingMethod, toWire(claims, issuer))
	signed, err := token.SignedString(key)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

func verify(token string, key []byte, expected Kind, now time.Time, issuer string) (Claims, error) {
	wc, err := parse(token, key, issuer)
	if err != nil {
		return Claims{}, err
	}
	claims, err := fromWire(wc)
	if err != nil {
		return Claims{}, err
	}
	if now.Unix() > claims.ExpiresAt {
		return Claims{}, ErrExpired
	}
	if claims.Kind != expected {
		return Claims{}, ErrKindMismatch
	}
	return claims, nil
}

// parse verifies the signature only; time and kind checks are done by the
// caller against an injected clock.
func parse(token string, key []byte, issuer string) (*wireClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	wc := &wireClaims{}
	parsed, err := parser.ParseWithClaims(token, wc, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrMalformed
	}
	if issuer != "" && wc.Issuer != issuer {
		return nil, ErrMalformed
	}
	return wc, nil
}

func peekKind(token string) (Kind, error) {
	wc := &wireClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, wc); err != nil {
		return "", err
	}
	return wc.Kind, nil
}

// precheck rejects input that cannot be a compact JWS before any crypto runs.
func precheck(token string) error {
	if len(token) < MinTokenLength || len(token) > MaxTokenLength {
		return ErrMalformed
	}
	segments := 0
	start := 0
	for i := 0; i <= len(token); i++ {
		if i < len(token) && token[i] != '.' {
			if !isBase64URL(token[i]) {
				return ErrMalformed
			}
			continue
		}
		if i == start {
			return ErrMalformed
		}
		segments++
		start = i + 1
	}
	if segments != 3 {
		return ErrMalformed
	}
	return nil
}

func isBase64URL(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '-' || b == '_'
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
