package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_requests_submitted_total",
		Help: "Total number of key generation requests submitted",
	})

	RequestsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_requests_completed_total",
		Help: "Total number of key generation requests completed successfully",
	})

	RequestsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_requests_failed_total",
		Help: "Total number of key generation requests that failed permanently",
	})

	DuplicateDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_duplicate_deliveries_total",
		Help: "Total number of queue deliveries absorbed as duplicates",
	})

	DeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_dead_lettered_total",
		Help: "Total number of messages diverted to the dead-letter path",
	})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyforge_generation_duration_seconds",
		Help:    "Time taken to generate key material in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"key_type"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyforge_active_workers",
		Help: "Current number of active workers",
	})
)
