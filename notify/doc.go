// Package notify delivers one-time codes. Both notifiers satisfy
// authcore.Notifier.
//
// SMTP sends plain-text mail through go-mail. Log writes messages to a zap
// logger and is meant for local development only, since it records codes.
package notify
