// Package metrics holds the scheduling service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		},
		[]string{"route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SlotsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_slots_returned",
			Help:    "Slots returned per availability or suggestion request.",
			Buckets: []float64{0, 1, 3, 8, 20, 50, 100, 250, 500},
		},
		[]string{"operation"},
	)

	ValidationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_validation_verdicts_total",
			Help: "Appointment time validations by outcome.",
		},
		[]string{"valid"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_cache_requests_total",
			Help: "Read-through cache lookups by entity and result (hit, miss, error).",
		},
		[]string{"entity", "result"},
	)

	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_cache_invalidations_total",
			Help: "Cache invalidation events consumed, by topic and result.",
		},
		[]string{"topic", "result"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument records request count and latency for route.
func Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
