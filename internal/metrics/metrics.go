package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authcore"

// Operation names used as the "op" label.
const (
	OpLogin              = "login"
	OpRefresh            = "refresh"
	OpValidateAccess     = "validate_access"
	OpLogout             = "logout"
	OpLogoutAll          = "logout_all"
	OpEmailVerifyRequest = "email_verify_request"
	OpEmailVerifyConfirm = "email_verify_confirm"
	OpResetRequest       = "password_reset_request"
	OpResetVerifyCode    = "password_reset_verify_code"
	OpResetConfirm       = "password_reset_confirm"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics groups every authcore collector.
type Metrics struct {
	operations      *prometheus.CounterVec
	permissionCache *prometheus.CounterVec
	reaperSweeps    *prometheus.CounterVec
	reaperPurged    prometheus.Counter
	revocations     prometheus.Counter
	auditDropped    *prometheus.CounterVec
	validateLatency prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is useful in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Session lifecycle operations by outcome.",
		}, []string{"op", "result"}),
		permissionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_cache_total",
			Help:      "Permission cache lookups by result.",
		}, []string{"result"}),
		reaperSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_sweeps_total",
			Help:      "Expiry reaper sweeps by outcome.",
		}, []string{"result"}),
		reaperPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_purged_total",
			Help:      "Expired credential rows deleted by the reaper.",
		}),
		auditDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit events discarded because the dispatcher buffer was full.",
		}, []string{"event"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Credentials revoked by logout, rotation or password reset.",
		}),
		validateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validate_duration_seconds",
			Help:      "Latency of access token validation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operations,
		m.permissionCache,
		m.reaperSweeps,
		m.reaperPurged,
		m.revocations,
		m.auditDropped,
		m.validateLatency,
	}
}

// Op counts one operation outcome.
func (m *Metrics) Op(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// Revoked counts n revoked credentials.
func (m *Metrics) Revoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.Add(float64(n))
}

// AuditDropped counts one audit event lost to a full buffer.
func (m *Metrics) AuditDropped(eventType string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(eventType).Inc()
}

// ObserveValidate records an access validation latency.
func (m *Metrics) ObserveValidate(d time.Duration) {
	if m == nil {
		return
	}
	m.validateLatency.Observe(d.Seconds())
}

// PermissionCacheHit implements permission.CacheObserver.
func (m *Metrics) PermissionCacheHit() {
	if m == nil {
		return
	}
	m.permissionCache.WithLabelValues("hit").Inc()
}

// PermissionCacheMiss implements permission.CacheObserver.
func (m *Metrics) PermissionCacheMiss() {
	if m == nil {
		return
	}
	m.permissionCache.WithLabelValues("miss").Inc()
}

// ReaperSweep records one sweep.
func (m *Metrics) ReaperSweep(purged int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reaperSweeps.WithLabelValues(ResultError).Inc()
		return
	}
	m.reaperSweeps.WithLabelValues(ResultSuccess).Inc()
	if purged > 0 {
		m.reaperPurged.Add(float64(purged))
	}
}
