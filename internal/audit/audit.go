package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the session lifecycle.
const (
	EventLogin                = "login"
	EventRefresh              = "refresh"
	EventRefreshReuse         = "refresh_reuse"
	EventLogout               = "logout"
	EventLogoutAll            = "logout_all"
	EventEmailVerifyRequested = "email_verify_requested"
	EventEmailVerified        = "email_verified"
	EventResetRequested       = "password_reset_requested"
	EventResetCodeVerified    = "password_reset_code_verified"
	EventPasswordReset        = "password_reset"
)

// Event is one security-relevant outcome. It never carries token values or
// one-time codes.
type Event struct {
	Timestamp    time.Time
	Type         string
	PrincipalID  string
	CredentialID string
	Success      bool
	Reason       string
	Metadata     map[string]string
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel, blocking until there is
// room or ctx is done.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// ZapSink writes each event as one structured log entry.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink returns a sink logging under the "audit" name. A nil logger
// yields a no-op sink.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	fields := []zap.Field{
		zap.String("event", event.Type),
		zap.Bool("success", event.Success),
		zap.Time("at", event.Timestamp),
	}
	if event.PrincipalID != "" {
		fields = append(fields, zap.String("principal_id", event.PrincipalID))
	}
	if event.CredentialID != "" {
		fields = append(fields, zap.String("credential_id", event.CredentialID))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	if event.Success {
		s.log.Info("audit", fields...)
		return
	}
	s.log.Warn("audit", fields...)
}
