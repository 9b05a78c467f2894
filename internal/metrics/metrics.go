// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package metrics registers the Prometheus collectors for the digest
// pipeline: scheduler runs, per-user compositions, mail delivery and scorer
// latency. Collectors are package-level and registered once via promauto.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler run metrics.
	DigestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_digest_runs_total",
			Help: "Total number of digest runs per cadence and outcome",
		},
		[]string{"cadence", "trigger"}, // trigger: "cron" or "manual"
	)

	DigestRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_digest_run_duration_seconds",
			Help:    "Wall-clock duration of one digest run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"cadence"},
	)

	DigestCohortSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "affinity_digest_cohort_size",
			Help: "Number of users selected for the most recent run of a cadence",
		},
		[]string{"cadence"},
	)

	// Per-user composition metrics.
	CompositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_compositions_total",
			Help: "Total digest compositions per category and outcome",
		},
		[]string{"category", "outcome"}, // outcome: "sent", "empty", "disabled", "failed"
	)

	CompositionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_composition_user_failures_total",
			Help: "Users whose composition failed or timed out, per cadence",
		},
		[]string{"cadence", "reason"}, // reason: "error", "timeout", "panic"
	)

	// Mail delivery metrics.
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_emails_sent_total",
			Help: "Digest emails handed to the SMTP transport, per category",
		},
		[]string{"category"},
	)

	EmailSendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_email_send_errors_total",
			Help: "Digest emails that failed delivery, per category and error kind",
		},
		[]string{"category", "kind"}, // kind: "smtp", "breaker_open", "rate_limited"
	)

	// Scoring metrics.
	ScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_score_duration_seconds",
			Help:    "Latency of one scoring pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scorer"}, // "person", "job", "similarity"
	)
)

// ObserveScore records one scoring pass latency.
func ObserveScore(scorer string, start time.Time) {
	ScoreDuration.WithLabelValues(scorer).Observe(time.Since(start).Seconds())
}
