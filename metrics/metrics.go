// Package metrics holds the Prometheus collectors shared by the lifecycle components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsSubmitted counts intake outcomes by result (ok, validation, unauthenticated, storage, persistence)
	ReportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lapor",
		Name:      "reports_submitted_total",
		Help:      "Report submissions by outcome.",
	}, []string{"result"})

	// StatusTransitions counts committed status changes by target status
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lapor",
		Name:      "report_transitions_total",
		Help:      "Committed report status transitions.",
	}, []string{"to"})

	// PointsAwarded sums reward points credited to submitters
	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lapor",
		Name:      "points_awarded_total",
		Help:      "Reward points credited on verification.",
	})

	// DegradedListings counts moderator listings served without the profile join
	DegradedListings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lapor",
		Name:      "listing_degraded_total",
		Help:      "Listings that fell back to the unjoined read.",
	})

	// InferenceDuration observes model inference latency
	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lapor",
		Name:      "inference_duration_seconds",
		Help:      "Object detection latency.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	// InferenceFailures counts failed classifications by stage (load, decode, inference)
	InferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lapor",
		Name:      "inference_failures_total",
		Help:      "Classification failures by stage.",
	}, []string{"stage"})

	// HTTPRequests observes request latency by route template, method and status code
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lapor",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)
