package notify

import (
	"context"
	"errors"
	"testing"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureSender struct {
	sent []*mail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*mail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func testSMTP(t *testing.T, cs *captureSender) *SMTP {
	t.Helper()
	s, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}, nil)
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	s.dialer = cs
	return s
}

func TestNewSMTPValidation(t *testing.T) {
	cases := map[string]SMTPConfig{
		"no host":  {Port: 25, From: "a@b.c"},
		"no port":  {Host: "h", From: "a@b.c"},
		"bad from": {Host: "h", Port: 25, From: "nobody"},
		"bad tls":  {Host: "h", Port: 25, From: "a@b.c", TLSMode: "maybe"},
	}
	for name, cfg := range cases {
		if _, err := NewSMTP(cfg, nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	for _, mode := range []string{"", TLSAuto, TLSSSL, TLSNone} {
		if _, err := NewSMTP(SMTPConfig{Host: "h", Port: 465, From: "a@b.c", TLSMode: mode}, nil); err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
	}
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	cs := &captureSender{}
	s := testSMTP(t, cs)

	if err := s.Send(context.Background(), "ada@example.com", "Verify your email", "code 123456"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(cs.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(cs.sent))
	}
	m := cs.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "ada@example.com" {
		t.Fatalf("unexpected To %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Verify your email" {
		t.Fatalf("unexpected Subject %v", got)
	}
}

func TestSMTPSendErrors(t *testing.T) {
	s := testSMTP(t, &captureSender{err: errors.New("connection refused")})
	if err := s.Send(context.Background(), "a@b.c", "s", "b"); err == nil {
		t.Fatal("expected dial failure to surface")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cs := &captureSender{}
	s = testSMTP(t, cs)
	if err := s.Send(ctx, "a@b.c", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(cs.sent) != 0 {
		t.Fatal("expected nothing sent on a cancelled context")
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))
	if err := n.Send(context.Background(), "ada@example.com", "subject", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	entries := logs.FilterMessage("notification").All()
	if len(entries) != 1 || entries[0].ContextMap()["to"] != "ada@example.com" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
}
