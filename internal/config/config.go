// Package config loads the authcore binary's configuration from YAML, an
// optional .env file and AUTHCORE_* environment variables, in increasing
// order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/notify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AUTHCORE_"

// Store drivers.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"postgres"`

	Store struct {
		// Driver selects the credential store: "redis" or "postgres".
		Driver      string `yaml:"driver"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"store"`

	Reaper struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"reaper"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Tokens struct {
		Issuer string `yaml:"issuer"`
		// Keys are base64url encoded, as printed by `authcore keys generate`.
		AccessKey        string        `yaml:"access_key"`
		RefreshKey       string        `yaml:"refresh_key"`
		PasswordResetKey string        `yaml:"password_reset_key"`
		OTPVerifyKey     string        `yaml:"otp_verify_key"`
		AccessTTL        time.Duration `yaml:"access_ttl"`
		RefreshTTL       time.Duration `yaml:"refresh_ttl"`
	} `yaml:"tokens"`

	OTP struct {
		Pepper      string        `yaml:"pepper"`
		TTL         time.Duration `yaml:"ttl"`
		MaxAttempts int           `yaml:"max_attempts"`
	} `yaml:"otp"`

	Policy struct {
		AllowedEmailDomains []string `yaml:"allowed_email_domains"`
	} `yaml:"policy"`

	SMTP notify.SMTPConfig `yaml:"smtp"`
}

// LoadDotEnv loads path into the process environment. A missing file is not
// an error; existing variables are never overwritten.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Load reads path (optional), applies defaults and environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Env == "" {
		c.Log.Env = "prod"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverRedis
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.ConnMaxLifetime == 0 {
		c.Postgres.ConnMaxLifetime = 30 * time.Minute
	}
}

func (c *Config) applyEnvOverrides() {
	// LOG
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// POSTGRES / STORE
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORE_REDIS_PREFIX"); ok {
		c.Store.RedisPrefix = v
	}

	// REAPER / METRICS
	if v, ok := getEnvDur("REAPER_INTERVAL"); ok {
		c.Reaper.Interval = v
	}
	if v, ok := getEnvDur("REAPER_TIMEOUT"); ok {
		c.Reaper.Timeout = v
	}
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}

	// TOKENS
	if v, ok := getEnvStr("TOKENS_ISSUER"); ok {
		c.Tokens.Issuer = v
	}
	if v, ok := getEnvStr("TOKENS_ACCESS_KEY"); ok {
		c.Tokens.AccessKey = v
	}
	if v, ok := getEnvStr("TOKENS_REFRESH_KEY"); ok {
		c.Tokens.RefreshKey = v
	}
	if v, ok := getEnvStr("TOKENS_PASSWORD_RESET_KEY"); ok {
		c.Tokens.PasswordResetKey = v
	}
	if v, ok := getEnvStr("TOKENS_OTP_VERIFY_KEY"); ok {
		c.Tokens.OTPVerifyKey = v
	}
	if v, ok := getEnvDur("TOKENS_ACCESS_TTL"); ok {
		c.Tokens.AccessTTL = v
	}
	if v, ok := getEnvDur("TOKENS_REFRESH_TTL"); ok {
		c.Tokens.RefreshTTL = v
	}

	// OTP / POLICY
	if v, ok := getEnvStr("OTP_PEPPER"); ok {
		c.OTP.Pepper = v
	}
	if v, ok := getEnvDur("OTP_TTL"); ok {
		c.OTP.TTL = v
	}
	if v, ok := getEnvInt("OTP_MAX_ATTEMPTS"); ok {
		c.OTP.MaxAttempts = v
	}
	if v, ok := getEnvCSV("POLICY_ALLOWED_EMAIL_DOMAINS"); ok {
		c.Policy.AllowedEmailDomains = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_TLS_MODE"); ok {
		c.SMTP.TLSMode = v
	}
}

// Validate checks the fields every command needs. Token keys are checked
// by Engine, since only commands that build one require them.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverRedis:
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			return errors.New("postgres.dsn is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of redis, postgres", c.Store.Driver)
	}
	if c.Reaper.Interval < 0 || c.Reaper.Timeout < 0 {
		return errors.New("reaper durations must be >= 0")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must be >= 0")
	}
	return nil
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{Env: c.Log.Env, Level: c.Log.Level, ServiceName: "authcore"}
}

// Engine maps the file configuration onto authcore.DefaultConfig. Zero
// values keep the library defaults.
func (c *Config) Engine() (authcore.Config, error) {
	out := authcore.DefaultConfig()
	var err error

	if c.Tokens.Issuer != "" {
		out.Tokens.Issuer = c.Tokens.Issuer
	}
	keys := []struct {
		name string
		src  string
		dst  *[]byte
	}{
		{"tokens.access_key", c.Tokens.AccessKey, &out.Tokens.AccessKey},
		{"tokens.refresh_key", c.Tokens.RefreshKey, &out.Tokens.RefreshKey},
		{"tokens.password_reset_key", c.Tokens.PasswordResetKey, &out.Tokens.PasswordResetKey},
		{"tokens.otp_verify_key", c.Tokens.OTPVerifyKey, &out.Tokens.OTPVerifyKey},
		{"otp.pepper", c.OTP.Pepper, &out.OTP.Pepper},
	}
	for _, k := range keys {
		if *k.dst, err = DecodeKey(k.src); err != nil {
			return authcore.Config{}, fmt.Errorf("%s: %w", k.name, err)
		}
	}
	if c.Tokens.AccessTTL > 0 {
		out.Tokens.AccessTTL = c.Tokens.AccessTTL
	}
	if c.Tokens.RefreshTTL > 0 {
		out.Tokens.RefreshTTL = c.Tokens.RefreshTTL
	}
	if c.OTP.TTL > 0 {
		out.OTP.TTL = c.OTP.TTL
	}
	if c.OTP.MaxAttempts > 0 {
		out.OTP.MaxAttempts = c.OTP.MaxAttempts
	}
	if c.Store.RedisPrefix != "" {
		out.Store.RedisPrefix = c.Store.RedisPrefix
	}
	if c.Reaper.Interval > 0 {
		out.Reaper.Interval = c.Reaper.Interval
	}
	if c.Reaper.Timeout > 0 {
		out.Reaper.Timeout = c.Reaper.Timeout
	}
	out.Policy.AllowedEmailDomains = append([]string(nil), c.Policy.AllowedEmailDomains...)

	if err := out.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return out, nil
}

// EncodeKey is the inverse of DecodeKey.
func EncodeKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeKey decodes a base64url key, with or without padding.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, errors.New("key is empty")
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
