// Package metrics exposes Prometheus counters for the inspection backend.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cta_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_submissions_total",
			Help: "Inspection records received, by vehicle type",
		},
		[]string{"vehicle_type"},
	)

	reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cta_reviews_total",
			Help: "Supervisor decisions, by resulting status",
		},
		[]string{"decision"},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(reviewsTotal)

	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest counts one request against its route template.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSubmission counts an accepted inspection record.
func RecordSubmission(vehicleType string) {
	if vehicleType == "" {
		vehicleType = "unknown"
	}
	submissionsTotal.WithLabelValues(vehicleType).Inc()
}

// RecordReview counts a supervisor decision.
func RecordReview(decision string) {
	reviewsTotal.WithLabelValues(decision).Inc()
}
