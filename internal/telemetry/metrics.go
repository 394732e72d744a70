package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bank_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRejectedBusy = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bank_http_rejected_busy_total",
			Help: "Requests refused by the in-flight limiter",
		},
	)

	// TransfersTotal is labelled by outcome: completed, limit_exceeded,
	// client_not_found, insufficient_funds, fault, invalid.
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_transfers_total",
			Help: "Transfer attempts by outcome",
		},
		[]string{"outcome"},
	)

	TransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bank_transfer_amount",
			Help:    "Requested transfer amounts",
			Buckets: []float64{10, 50, 100, 500, 1000, 2500, 5000, 10000, 50000},
		},
		[]string{"outcome"},
	)

	TransferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bank_transfer_duration_seconds",
			Help:    "Time to execute and record a transfer",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ClientsRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bank_clients_registered_total",
			Help: "Clients registered since start",
		},
	)

	NATSPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_nats_messages_published_total",
			Help: "Transfer outcome messages published to NATS",
		},
		[]string{"subject", "result"},
	)
)
