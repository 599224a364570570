// Package metrics exposes Prometheus instrumentation for membership operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_transitions_total",
			Help: "Total number of applied membership transitions by resulting status",
		},
		[]string{"status"},
	)

	PaymentsConfirmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membergate_payments_confirmed_total",
			Help: "Total number of confirmed payments",
		},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_gateway_errors_total",
			Help: "Total number of rejected or failed gateway operations by operation and kind",
		},
		[]string{"operation", "kind"},
	)

	FilterBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membergate_filter_broadcasts_total",
			Help: "Total number of filter-changed signals published",
		},
	)
)

// RecordTransition counts an applied status transition.
func RecordTransition(status string) {
	TransitionsTotal.WithLabelValues(status).Inc()
}

// RecordPayment counts a confirmed payment.
func RecordPayment() {
	PaymentsConfirmedTotal.Inc()
}

// RecordGatewayError counts a failed operation.
func RecordGatewayError(operation, kind string) {
	GatewayErrorsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordFilterBroadcast counts a published filter-changed signal.
func RecordFilterBroadcast() {
	FilterBroadcastsTotal.Inc()
}
