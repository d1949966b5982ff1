// Package metrics exposes Prometheus counters for the payment flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_payment_sessions_started_total",
		Help: "Payment screen sessions started.",
	})

	PaymentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_submitted_total",
		Help: "Payment split submissions by method and outcome.",
	}, []string{"method", "status"})

	SplitsRebalanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_splits_rebalanced_total",
		Help: "Automatic split redistributions triggered by total or split changes.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
