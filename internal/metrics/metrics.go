// Package metrics declares the Prometheus metrics of the auth core. All metrics
// are registered with the default registry on package init and scraped from
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uniplus"

// LoginAttemptsTotal counts login outcomes.
// Label:
//   - result: "success", "invalid_credentials", "locked" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// LockoutsTotal counts identities crossing the failure threshold.
var LockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttle_lockouts_total",
		Help:      "Total number of times an identity reached the failed-attempt limit.",
	},
)

// SessionsIssuedTotal counts sessions written to the active slot.
// Label:
//   - source: "login", "signup" or "demo"
var SessionsIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_issued_total",
		Help:      "Total number of sessions issued, by source.",
	},
	[]string{"source"},
)

// RotationsTotal counts silent and explicit rotations.
// Label:
//   - result: "success", "failed" or "discarded"
var RotationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_rotations_total",
		Help:      "Total number of session rotations, by result.",
	},
	[]string{"result"},
)

// RotationDuration measures the token authority round-trip.
var RotationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_rotation_duration_seconds",
		Help:      "Duration of a token authority renewal call.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ForcedLogoutsTotal counts sessions cleared by the heartbeat.
// Label:
//   - reason: "expired" or "rotation_failed"
var ForcedLogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_logouts_total",
		Help:      "Total number of forced logouts, by reason.",
	},
	[]string{"reason"},
)

// RecoveryRequestsTotal counts password recovery requests.
// Label:
//   - result: "sent", "unknown_email", "reset" or "rejected"
var RecoveryRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovery_requests_total",
		Help:      "Total number of password recovery operations, by result.",
	},
	[]string{"result"},
)
