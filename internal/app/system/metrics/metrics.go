// Package metrics holds the Prometheus collectors exported on /metrics.
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
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratatrack_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_signins_total",
		Help: "Sign-in attempts by method and outcome",
	}, []string{"method", "outcome"})

	RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_records_written_total",
		Help: "Indicator records written, by source",
	}, []string{"source"})

	ChartsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_charts_served_total",
		Help: "Chart series served, by period and format",
	}, []string{"period", "format"})

	DemoUsers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_demo_users_total",
		Help: "Demo accounts created and deleted",
	}, []string{"event"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratatrack_job_runs_total",
		Help: "Background job executions by job and outcome",
	}, []string{"job", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratatrack_job_duration_seconds",
		Help:    "Background job execution time",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"job"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per chi route pattern.
// Unmatched requests are grouped under "unmatched" to keep label
// cardinality bounded.
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
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
