// Package metrics exposes Prometheus counters for the HTTP surface and the
// ledger writes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleup_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settleup_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ExpensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settleup_expenses_created_total",
		Help: "Expenses recorded.",
	})

	SettlementsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settleup_settlements_recorded_total",
		Help: "Settlement payments recorded.",
	})

	PlanTransfers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settleup_settle_plan_transfers",
		Help:    "Number of transfers in each computed settlement plan.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
)

// Middleware records request counts and latency labelled by the chi route
// pattern, so /groups/{id} is one series rather than one per id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
