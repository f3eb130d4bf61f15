// Package observability – Prometheus instrumentation.
//
// This file holds the domain-level collectors the services and the
// scheduler record into. Labels are chosen with bounded cardinality:
// event types, check results, and scan names are all small closed
// vocabularies. All collectors are safe for concurrent use.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// EventsRegistered counts lifecycle events accepted by the dispatch
	// core, by event type (CALVING, DRY_OFF, ...).
	EventsRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_events_registered_total",
			Help: "Total number of lifecycle events registered.",
		},
		[]string{"type"},
	)

	// InseminationsRecorded counts breeding attempts recorded, by
	// method (AI, NATURAL, ET, IATF).
	InseminationsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_inseminations_recorded_total",
			Help: "Total number of inseminations recorded.",
		},
		[]string{"method"},
	)

	// PregnancyChecks counts pregnancy check outcomes, by result
	// (CONFIRMED, OPEN, LOST).
	PregnancyChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_pregnancy_checks_total",
			Help: "Total number of pregnancy checks recorded.",
		},
		[]string{"result"},
	)

	// ScanRuns counts completed scheduler scan runs, by scan name.
	ScanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_scan_runs_total",
			Help: "Total number of scheduler scan executions.",
		},
		[]string{"scan"},
	)

	// ScanFailures counts scan runs that returned an error, by scan name.
	ScanFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_scan_failures_total",
			Help: "Total number of failed scheduler scan executions.",
		},
		[]string{"scan"},
	)

	// NotificationsEnqueued counts outbound notifications handed to a
	// dispatcher, by notification type.
	NotificationsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_notifications_enqueued_total",
			Help: "Total number of notifications enqueued for delivery.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsRegistered,
		InseminationsRecorded,
		PregnancyChecks,
		ScanRuns,
		ScanFailures,
		NotificationsEnqueued,
	)
}
