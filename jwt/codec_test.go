package jwt

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, MinKeyLength)
}

func accessClaims(subject string) Claims {
	return Claims{
		Subject: subject,
		Kind:    KindAccess,
		Access:  &AccessFields{Roles: []string{"editor"}, Email: subject + "@example.com"},
	}
}

func refreshClaims(subject, cid string) Claims {
	return Claims{Subject: subject, Kind: KindRefresh, Credential: &CredentialFields{CredentialID: cid}}
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(Config{
		Issuer: "authcore-test",
		Keys: map[Kind]KeyConfig{
			KindAccess:        {Key: testKey('a'), TTL: 15 * time.Minute},
			KindRefresh:       {Key: testKey('r'), TTL: 7 * 24 * time.Hour},
			KindPasswordReset: {Key: testKey('p'), TTL: 10 * time.Minute},
			KindOTPVerify:     {Key: testKey('o'), TTL: 15 * time.Minute},
		},
		Now: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestCodecRoundTripAllKinds(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	ttls := map[Kind]time.Duration{
		KindAccess:        15 * time.Minute,
		KindRefresh:       7 * 24 * time.Hour,
		KindPasswordReset: 10 * time.Minute,
		KindOTPVerify:     15 * time.Minute,
	}
	inputs := []Claims{
		accessClaims("u1"),
		refreshClaims("u1", "c1"),
		{Subject: "u1", Kind: KindPasswordReset, Credential: &CredentialFields{CredentialID: "c2"}},
		{Subject: "u1", Kind: KindOTPVerify, OTP: &OTPFields{Purpose: "email_verify"}},
	}

	for _, in := range inputs {
		token, issued, err := c.Sign(in)
		if err != nil {
			t.Fatalf("Sign(%s) failed: %v", in.Kind, err)
		}
		if issued.IssuedAt != clock.Now().Unix() {
			t.Fatalf("expected iat=%d, got %d", clock.Now().Unix(), issued.IssuedAt)
		}
		if want := issued.IssuedAt + int64(ttls[in.Kind]/time.Second); issued.ExpiresAt != want {
			t.Fatalf("expected exp=%d, got %d", want, issued.ExpiresAt)
		}

		got, err := c.Verify(token, in.Kind)
		if err != nil {
			t.Fatalf("Verify(%s) failed: %v", in.Kind, err)
		}
		if !reflect.DeepEqual(got, issued) {
			t.Fatalf("round trip mismatch for %s:\n got  %+v\n want %+v", in.Kind, got, issued)
		}
		if got.Subject != in.Subject || got.Kind != in.Kind {
			t.Fatalf("subject/kind not preserved: %+v", got)
		}
	}
}

func TestSignWithKeyRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	key := testKey('k')

	token, issued, err := SignWithKey(accessClaims("u9"), key, 90*time.Second, now)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	got, err := VerifyWithKey(token, key, KindAccess, now)
	if err != nil {
		t.Fatalf("VerifyWithKey failed: %v", err)
	}
	if !reflect.DeepEqual(got, issued) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, issued)
	}
	if got.ExpiresAt-got.IssuedAt != 90 {
		t.Fatalf("expected 90s lifetime, got %d", got.ExpiresAt-got.IssuedAt)
	}
}

func TestVerifyExpiryIsStrict(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	token, issued, err := c.Sign(accessClaims("u1"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	clock.t = time.Unix(issued.ExpiresAt, 0)
	if _, err := c.Verify(token, KindAccess); err != nil {
		t.Fatalf("expected token valid at exactly exp, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := c.Verify(token, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired one second past exp, got %v", err)
	}
}

func TestVerifyKindMismatch(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	refresh, _, err := c.Sign(refreshClaims("u1", "c1"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := c.Verify(refresh, KindAccess); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}

	key := testKey('k')
	token, _, err := SignWithKey(refreshClaims("u1", "c1"), key, time.Minute, clock.Now())
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	if _, err := VerifyWithKey(token, key, KindAccess, clock.Now()); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch from VerifyWithKey, got %v", err)
	}

	// Past its own expiry, a token of another kind reports ErrExpired from
	// both entry points.
	clock.Advance(8 * 24 * time.Hour)
	if _, err := c.Verify(refresh, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired for expired refresh verified as access, got %v", err)
	}
	if _, err := VerifyWithKey(token, key, KindAccess, clock.Now()); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired from VerifyWithKey, got %v", err)
	}
}

func TestVerifyRejectsForgedKindClaim(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	// Refresh payload signed with the access key must not pass as anything.
	forged, _, err := SignWithKey(refreshClaims("u1", "c1"), testKey('a'), time.Minute, clock.Now())
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	if _, err := c.Verify(forged, KindRefresh); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong key, got %v", err)
	}
	if _, err := c.Verify(forged, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for forged kind, got %v", err)
	}
}

func TestVerifyStructuralPrecheck(t *testing.T) {
	c := newTestCodec(t, newClock())

	cases := []string{
		"",
		"short",
		strings.Repeat("a", 40),
		strings.Repeat("a", 20) + ".." + strings.Repeat("b", 20),
		strings.Repeat("a", 20) + "." + strings.Repeat("b", 20) + "." + strings.Repeat("c", 20) + "." + "d",
		strings.Repeat("a", 20) + "." + strings.Repeat("b", 20) + ".c$c",
		strings.Repeat("x", MaxTokenLength+1),
	}
	for _, tc := range cases {
		if _, err := c.Verify(tc, KindAccess); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", tc, err)
		}
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	token, _, err := c.Sign(accessClaims("u1"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sigStart := strings.LastIndex(token, ".") + 1
	repl := byte('A')
	if token[sigStart] == 'A' {
		repl = 'B'
	}
	tampered := token[:sigStart] + string(repl) + token[sigStart+1:]
	if _, err := c.Verify(tampered, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for tampered token, got %v", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	wc := toWire(Claims{
		Subject:   "u1",
		Kind:      KindAccess,
		IssuedAt:  clock.Now().Unix(),
		ExpiresAt: clock.Now().Add(time.Minute).Unix(),
		Access:    &AccessFields{},
	}, "authcore-test")
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS512, wc)
	signed, err := tok.SignedString(testKey('a'))
	if err != nil {
		t.Fatalf("sign HS512 failed: %v", err)
	}
	if _, err := c.Verify(signed, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	clock := newClock()
	c := newTestCodec(t, clock)

	token, _, err := sign(accessClaims("u1"), testKey('a'), time.Minute, clock.Now(), "someone-else")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := c.Verify(token, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected wrong issuer to be malformed, got %v", err)
	}
}

func TestSignRejectsPayloadForWrongKind(t *testing.T) {
	c := newTestCodec(t, newClock())

	bad := []Claims{
		{Subject: "u1", Kind: KindRefresh},
		{Subject: "u1", Kind: KindAccess, Credential: &CredentialFields{CredentialID: "c1"}},
		{Subject: "", Kind: KindAccess, Access: &AccessFields{}},
		{Subject: "u1", Kind: KindOTPVerify, OTP: &OTPFields{}},
		{Subject: "u1", Kind: Kind("session"), Access: &AccessFields{}},
	}
	for _, in := range bad {
		if _, _, err := c.Sign(in); err == nil {
			t.Fatalf("expected Sign to reject %+v", in)
		}
	}
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(Config{}); err == nil {
		t.Fatal("expected empty key set to be rejected")
	}
	if _, err := NewCodec(Config{Keys: map[Kind]KeyConfig{KindAccess: {Key: []byte("short"), TTL: time.Minute}}}); err == nil {
		t.Fatal("expected short key to be rejected")
	}
	if _, err := NewCodec(Config{Keys: map[Kind]KeyConfig{KindAccess: {Key: testKey('a'), TTL: 0}}}); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
	if _, err := NewCodec(Config{Keys: map[Kind]KeyConfig{Kind("session"): {Key: testKey('x'), TTL: time.Minute}}}); err == nil {
		t.Fatal("expected unsupported kind to be rejected")
	}
	shared := testKey('s')
	_, err := NewCodec(Config{Keys: map[Kind]KeyConfig{
		KindAccess:  {Key: shared, TTL: time.Minute},
		KindRefresh: {Key: shared, TTL: time.Hour},
	}})
	if err == nil {
		t.Fatal("expected shared key material to be rejected")
	}
}

func TestVerifyUnknownKind(t *testing.T) {
	c, err := NewCodec(Config{Keys: map[Kind]KeyConfig{KindAccess: {Key: testKey('a'), TTL: time.Minute}}})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	if _, _, err := c.Sign(refreshClaims("u1", "c1")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func FuzzCodecVerify(f *testing.F) {
	clock := newClock()
	c, err := NewCodec(Config{
		Keys: map[Kind]KeyConfig{
			KindAccess:  {Key: testKey('a'), TTL: time.Minute},
			KindRefresh: {Key: testKey('r'), TTL: time.Hour},
		},
		Now: clock.Now,
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := c.Sign(accessClaims("seed"))
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add(valid + ".extra")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := c.Verify(token, KindAccess)
		if err == nil && claims.Kind != KindAccess {
			t.Fatalf("verified token with kind %q", claims.Kind)
		}
	})
}
