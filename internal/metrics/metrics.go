package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loginflow"

var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	GuardChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_checks_total",
			Help:      "Route guard checks by decision",
		},
		[]string{"decision"},
	)

	VerifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verify_duration_seconds",
			Help:      "Latency of /verify round trips",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	TabsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tabs_connected",
			Help:      "Browser tabs currently bridged over websocket",
		},
	)
)

// ObserveLogin counts one finished login attempt.
func ObserveLogin(outcome string) {
	LoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCheck counts one guard decision.
func ObserveCheck(decision string) {
	GuardChecksTotal.WithLabelValues(decision).Inc()
}

// ObserveVerify records the latency of a /verify call that started at start.
func ObserveVerify(start time.Time) {
	VerifyDuration.Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
