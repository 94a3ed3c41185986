package authcore

import (
	"bytes"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Tokens.AccessKey = bytes.Repeat([]byte{'a'}, 32)
	cfg.Tokens.RefreshKey = bytes.Repeat([]byte{'r'}, 32)
	cfg.Tokens.PasswordResetKey = bytes.Repeat([]byte{'p'}, 32)
	cfg.Tokens.OTPVerifyKey = bytes.Repeat([]byte{'o'}, 32)
	cfg.OTP.Pepper = bytes.Repeat([]byte{'x'}, 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}, wantValid: true},
		{name: "short access key", mutate: func(c *Config) { c.Tokens.AccessKey = []byte("short") }, wantValid: false},
		{name: "zero refresh ttl", mutate: func(c *Config) { c.Tokens.RefreshTTL = 0 }, wantValid: false},
		{name: "access outlives refresh", mutate: func(c *Config) { c.Tokens.AccessTTL = 8 * 24 * time.Hour }, wantValid: false},
		{name: "otp digits too small", mutate: func(c *Config) { c.OTP.Digits = 4 }, wantValid: false},
		{name: "otp digits ten", mutate: func(c *Config) { c.OTP.Digits = 10 }, wantValid: true},
		{name: "missing pepper", mutate: func(c *Config) { c.OTP.Pepper = nil }, wantValid: false},
		{name: "weak argon memory", mutate: func(c *Config) { c.Password.Memory = 1024 }, wantValid: false},
		{name: "blank admin role", mutate: func(c *Config) { c.Permission.AdminRole = "  " }, wantValid: false},
		{name: "zero write timeout", mutate: func(c *Config) { c.Store.WriteTimeout = 0 }, wantValid: false},
		{name: "audit without buffer", mutate: func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, wantValid: false},
		{name: "domain with at sign", mutate: func(c *Config) { c.Policy.AllowedEmailDomains = []string{"a@b.com"} }, wantValid: false},
		{name: "domain allow list", mutate: func(c *Config) { c.Policy.AllowedEmailDomains = []string{"example.com"} }, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestEmailAllowed(t *testing.T) {
	p := PolicyConfig{AllowedEmailDomains: []string{"example.com", ".corp.test"}}
	cases := map[string]bool{
		"ann@example.com":      true,
		"ann@EXAMPLE.com":      true,
		"ann@mail.example.com": true,
		"ann@eu.corp.test":     true,
		"ann@badexample.com":   false,
		"ann@example.org":      false,
		"not-an-email":         false,
	}
	for email, want := range cases {
		if got := p.emailAllowed(email); got != want {
			t.Fatalf("emailAllowed(%q) = %v, want %v", email, got, want)
		}
	}
	if !(PolicyConfig{}).emailAllowed("anyone@anywhere.io") {
		t.Fatal("expected empty allow-list to allow everything")
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := validTestConfig()
	cp := cloneConfig(cfg)
	cfg.Tokens.AccessKey[0] = 'z'
	cfg.OTP.Pepper[0] = 'z'
	if cp.Tokens.AccessKey[0] != 'a' || cp.OTP.Pepper[0] != 'x' {
		t.Fatal("expected clone to own its key material")
	}
}
