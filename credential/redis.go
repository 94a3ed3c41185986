package credential

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "authcore:cred"

const purgeBatch = 500

// Hash fields: pid, kind, dig (hex), iat, exp (unix seconds), rev ("0"|"1").
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "pid", ARGV[2], "kind", ARGV[3], "dig", ARGV[4], "iat", ARGV[5], "exp", ARGV[6], "rev", "0")
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[6], ARGV[1])
return 1
`

const findActiveScript = `
local v = redis.call("HMGET", KEYS[1], "pid", "kind", "dig", "iat", "exp", "rev")
if not v[1] then
  return nil
end
if v[1] ~= ARGV[1] or v[2] ~= ARGV[2] or v[6] ~= "0" then
  return nil
end
if tonumber(v[5]) < tonumber(ARGV[3]) then
  return nil
end
return {v[3], v[4], v[5]}
`

const rotateScript = `
local v = redis.call("HMGET", KEYS[1], "pid", "kind", "rev", "exp")
if not v[1] or v[1] ~= ARGV[1] or v[2] ~= ARGV[2] or v[3] ~= "0" then
  return 0
end
if tonumber(v[4]) < tonumber(ARGV[3]) then
  return 0
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("HSET", KEYS[1], "rev", "1")
redis.call("HSET", KEYS[2], "pid", ARGV[1], "kind", ARGV[2], "dig", ARGV[5], "iat", ARGV[6], "exp", ARGV[7], "rev", "0")
redis.call("SADD", KEYS[3], ARGV[4])
redis.call("ZADD", KEYS[4], ARGV[7], ARGV[4])
return 1
`

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "rev", "1")
  return 1
end
return 0
`

const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local rev = redis.call("HGET", key, "rev")
  if not rev then
    redis.call("SREM", KEYS[1], id)
  elseif rev == "0" then
    redis.call("HSET", key, "rev", "1")
    n = n + 1
  end
end
return n
`

const purgeScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1], "LIMIT", 0, tonumber(ARGV[4]))
for _, id in ipairs(ids) do
  local key = ARGV[2] .. id
  local v = redis.call("HMGET", key, "pid", "kind")
  if v[1] then
    redis.call("SREM", ARGV[3] .. v[1] .. ":" .. v[2], id)
  end
  redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`

var (
	createLua     = redis.NewScript(createScript)
	findActiveLua = redis.NewScript(findActiveScript)
	rotateLua     = redis.NewScript(rotateScript)
	revokeLua     = redis.NewScript(revokeScript)
	revokeAllLua  = redis.NewScript(revokeAllScript)
	purgeLua      = redis.NewScript(purgeScript)
)

// RedisStore keeps credentials in Redis.
//
// Scripts build per-credential keys from ARGV, so on Redis Cluster the prefix
// must carry a hash tag (for example "{authcore}:cred") to keep every key in
// one slot.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a RedisStore. An empty prefix selects "authcore:cred".
func NewRedisStore(rdb redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: rdb, prefix: prefix, now: o.now}
}

func (s *RedisStore) credPrefix() string { return s.prefix + ":c:" }

func (s *RedisStore) indexPrefix() string { return s.prefix + ":p:" }

func (s *RedisStore) key(id string) string { return s.credPrefix() + id }

func (s *RedisStore) indexKey(principalID string, kind jwt.Kind) string {
	return s.indexPrefix() + principalID + ":" + string(kind)
}

func (s *RedisStore) expiryKey() string { return s.prefix + ":exp" }

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, c *Credential) error {
	if err := validate(c); err != nil {
		return err
	}
	res, err := createLua.Run(ctx, s.redis,
		[]string{s.key(c.ID), s.indexKey(c.PrincipalID, c.Kind), s.expiryKey()},
		c.ID, c.PrincipalID, string(c.Kind), hex.EncodeToString(c.ValueDigest[:]),
		c.IssuedAt.Unix(), c.ExpiresAt.Unix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

// FindActive implements Store.
func (s *RedisStore) FindActive(ctx context.Context, kind jwt.Kind, principalID, credentialID string) (*Credential, error) {
	if credentialID == "" || principalID == "" {
		return nil, ErrNotFound
	}
	vals, err := findActiveLua.Run(ctx, s.redis,
		[]string{s.key(credentialID)},
		principalID, string(kind), s.now().Unix(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("%w: unexpected script reply length %d", ErrUnavailable, len(vals))
	}

	c := &Credential{ID: credentialID, PrincipalID: principalID, Kind: kind}
	if err := decodeDigest(vals[0], &c.ValueDigest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	iat, err := strconv.ParseInt(vals[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt issued_at: %v", ErrUnavailable, err)
	}
	exp, err := strconv.ParseInt(vals[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at: %v", ErrUnavailable, err)
	}
	c.IssuedAt = time.Unix(iat, 0)
	c.ExpiresAt = time.Unix(exp, 0)
	return c, nil
}

// Rotate implements Store.
func (s *RedisStore) Rotate(ctx context.Context, principalID, oldID string, next *Credential) error {
	if err := validateNext(principalID, next); err != nil {
		return err
	}
	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(oldID), s.key(next.ID), s.indexKey(principalID, next.Kind), s.expiryKey()},
		principalID, string(next.Kind), s.now().Unix(),
		next.ID, hex.EncodeToString(next.ValueDigest[:]), next.IssuedAt.Unix(), next.ExpiresAt.Unix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch res {
	case 1:
		return nil
	case 2:
		return ErrDuplicate
	default:
		return ErrNotFound
	}
}

// Revoke implements Store.
func (s *RedisStore) Revoke(ctx context.Context, credentialID string) error {
	if credentialID == "" {
		return nil
	}
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(credentialID)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForPrincipal implements Store.
func (s *RedisStore) RevokeAllForPrincipal(ctx context.Context, principalID string, kind jwt.Kind) (int64, error) {
	n, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.indexKey(principalID, kind)},
		s.credPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// PurgeExpiredBefore implements Store. Rows are removed in batches so a
// large backlog never blocks Redis in a single script call.
func (s *RedisStore) PurgeExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for {
		n, err := purgeLua.Run(ctx, s.redis,
			[]string{s.expiryKey()},
			now.Unix(), s.credPrefix(), s.indexPrefix(), purgeBatch,
		).Int64()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		total += n
		if n < purgeBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func decodeDigest(s string, dst *[32]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("corrupt digest: %w", err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("corrupt digest length %d", len(raw))
	}
	copy(dst[:], raw)
	return nil
}
