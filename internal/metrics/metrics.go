// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts successful check-in transitions.
	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regdesk_checkins_total",
		Help: "Number of participants checked in.",
	})

	// CheckOuts counts successful check-out transitions.
	CheckOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regdesk_checkouts_total",
		Help: "Number of participants checked out.",
	})

	// Registrations counts accepted registration submissions.
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regdesk_registrations_total",
		Help: "Number of registrations accepted.",
	})

	// RateLimited counts admission-control rejections by operation.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regdesk_rate_limited_total",
		Help: "Number of requests rejected by admission control.",
	}, []string{"operation"})

	// AuditAppendFailures counts swallowed audit-log write errors.
	AuditAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regdesk_audit_append_failures_total",
		Help: "Number of audit entries that failed to persist.",
	})
)
