package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes every message to a logger instead of delivering it.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("notify")}
}

func (l *Log) Send(_ context.Context, to, subject, body string) error {
	l.log.Info("notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
