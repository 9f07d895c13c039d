package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VisitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Unique visitors accepted.",
	})
	DuplicateVisits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_duplicate_total",
		Help: "Visitors rejected as already seen this month.",
	})
	RequestsByRoute = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visit_requests_total",
		Help: "Dispatched requests by route and outcome.",
	}, []string{"route", "outcome"})
	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visit_store_operation_duration_seconds",
		Help:    "Latency of visit store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})
	StoreOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visit_store_operation_errors_total",
		Help: "Failed visit store operations.",
	}, []string{"backend", "op"})
)

func init() {
	prometheus.MustRegister(VisitsRecorded, DuplicateVisits, RequestsByRoute, StoreOpDuration, StoreOpErrors)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
