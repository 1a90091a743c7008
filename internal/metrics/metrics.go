package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookingd_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookingd_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	bookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookingd_bookings_total",
		Help: "Total number of booking attempts by outcome.",
	}, []string{"outcome"})

	caldavRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookingd_caldav_requests_total",
		Help: "Total number of CalDAV requests by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// Booking records one booking attempt outcome
// (confirmed, rejected, conflict, error).
func Booking(outcome string) {
	bookingsTotal.WithLabelValues(outcome).Inc()
}

// CalDAVRequest records one remote calendar request.
func CalDAVRequest(operation string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	caldavRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request counts and latencies per chi route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
