package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Booking executor

	BookingAttemptDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courtsched",
		Name:      "booking_attempt_duration_seconds",
		Help:      "Duration of one reservation call against the provider.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	BookingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsched",
		Name:      "bookings_total",
		Help:      "Terminal booking outcomes, by how they ended.",
	}, []string{"outcome"})

	// Token refresh protocol

	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsched",
		Name:      "token_refreshes_total",
		Help:      "Refresh exchange outcomes.",
	}, []string{"outcome"})

	// Trigger scheduler

	ActionsArmed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "courtsched",
		Name:      "actions_armed",
		Help:      "Timed actions currently armed, by kind.",
	}, []string{"kind"})

	ActionsFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsched",
		Name:      "actions_fired_total",
		Help:      "Timed actions that reached their fire instant and ran.",
	}, []string{"kind"})

	PastDueSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "courtsched",
		Name:      "past_due_skipped_total",
		Help:      "Pending entries classified unrecoverable at reconciliation.",
	})

	SchedulerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "courtsched",
		Name:      "scheduler_start_time_seconds",
		Help:      "Unix timestamp when reconciliation completed.",
	})

	// HTTP surface

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courtsched",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsched",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		BookingAttemptDuration,
		BookingsTotal,
		TokenRefreshesTotal,
		ActionsArmed,
		ActionsFiredTotal,
		PastDueSkippedTotal,
		SchedulerStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
