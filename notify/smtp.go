package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// TLS modes accepted by SMTPConfig.TLSMode.
const (
	TLSAuto = "auto"
	TLSSSL  = "ssl"
	TLSNone = "none"
)

// SMTPConfig configures an SMTP notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TLSMode is one of "auto" (STARTTLS when offered), "ssl" or "none".
	TLSMode            string `yaml:"tls_mode"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTP sends messages through a mail server.
type SMTP struct {
	from   string
	dialer sender
	log    *zap.Logger
}

// NewSMTP validates cfg and returns an SMTP notifier.
func NewSMTP(cfg SMTPConfig, log *zap.Logger) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("notify: smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("notify: smtp port must be > 0")
	}
	if !strings.Contains(cfg.From, "@") {
		return nil, errors.New("notify: smtp from address is invalid")
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	switch cfg.TLSMode {
	case "", TLSAuto:
	case TLSSSL:
		d.SSL = true
	case TLSNone:
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		return nil, fmt.Errorf("notify: unknown tls mode %q", cfg.TLSMode)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &SMTP{
		from:   cfg.From,
		dialer: d,
		log:    log.Named("smtp").With(zap.String("host", cfg.Host), zap.Int("port", cfg.Port)),
	}, nil
}

// Send delivers a plain-text message. ctx is checked before dialing; an
// in-flight SMTP exchange is not interrupted.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.log.Error("smtp send failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Debug("email sent", zap.String("subject", subject))
	return nil
}
