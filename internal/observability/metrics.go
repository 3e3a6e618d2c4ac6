package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minuteride"

var (
	JobsCreatedTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "jobs_created_total", Help: "Jobs created by dispatchers"})
	TripsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "trips_completed_total", Help: "Trips completed by drivers"})
	ActiveTrips         = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "active_trips", Help: "Trip sessions opened by this instance and not yet closed"})
	TripFareDollars     = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trip_fare_dollars",
		Help:      "Billed fare per completed trip",
		Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90},
	})

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "claims_total", Help: "Claim attempts by outcome"},
		[]string{"outcome"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Per-recipient notification deliveries"},
		[]string{"channel", "outcome"},
	)
	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "change_events_total", Help: "Job row change notifications received"},
		[]string{"op"},
	)
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "stream_clients", Help: "Connected dashboard streams"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
