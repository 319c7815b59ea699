package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the tracking service.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrack_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiptrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	TrackingPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_tracking_polls_total",
			Help: "Total number of tracking lookups that found a shipment",
		},
	)

	// ProgressWritesTotal is labelled result=written|skipped|failed.
	ProgressWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrack_progress_writes_total",
			Help: "Outcome of the conditional progress write on each tracking poll",
		},
		[]string{"result"},
	)

	TrackingCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_tracking_cache_hits_total",
			Help: "Total number of tracking views served from Redis",
		},
	)

	ShipmentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_shipments_created_total",
			Help: "Total number of shipments created",
		},
	)

	ShipmentsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_shipments_delivered_total",
			Help: "Total number of shipments moved to Delivered by the simulation",
		},
	)

	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrack_validation_failures_total",
			Help: "Total number of rejected requests by offending field",
		},
		[]string{"field"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TrackingPollsTotal)
	prometheus.MustRegister(ProgressWritesTotal)
	prometheus.MustRegister(TrackingCacheHitsTotal)
	prometheus.MustRegister(ShipmentsCreatedTotal)
	prometheus.MustRegister(ShipmentsDeliveredTotal)
	prometheus.MustRegister(ValidationFailuresTotal)
}
