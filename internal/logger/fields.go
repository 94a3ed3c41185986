package logger

import "go.uber.org/zap"

func PrincipalID(id string) zap.Field { return zap.String("principal_id", id) }

func CredentialID(id string) zap.Field { return zap.String("credential_id", id) }

func Kind(kind string) zap.Field { return zap.String("kind", kind) }

func Purpose(purpose string) zap.Field { return zap.String("purpose", purpose) }

func Op(name string) zap.Field { return zap.String("op", name) }

func Count(n int64) zap.Field { return zap.Int64("count", n) }

// Email logs only the domain part of an address.
func Email(addr string) zap.Field {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return zap.String("email_domain", addr[i+1:])
		}
	}
	return zap.String("email_domain", "")
}
