package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the booking engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ReservationsTotal *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	CallbacksTotal    *prometheus.CounterVec
	SweepExpiredTotal prometheus.Counter
	SweepErrorsTotal  prometheus.Counter
	SweepDuration     prometheus.Histogram
	GatewayDuration   prometheus.Histogram
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReservationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_reservations_total",
			Help: "Reservation attempts by resource kind and outcome",
		}, []string{"kind", "outcome"}),

		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_status_transitions_total",
			Help: "Booking status transitions by target status and outcome",
		}, []string{"to", "outcome"}),

		CallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_payment_callbacks_total",
			Help: "Payment callbacks by source and result",
		}, []string{"source", "result"}),

		SweepExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_sweep_expired_total",
			Help: "PENDING bookings cancelled by the expiry sweep",
		}),

		SweepErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_sweep_errors_total",
			Help: "Errors encountered by the expiry sweep",
		}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_sweep_duration_seconds",
			Help:    "Time spent per expiry sweep run",
			Buckets: prometheus.DefBuckets,
		}),

		GatewayDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_gateway_create_order_seconds",
			Help:    "Latency of gateway order creation",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Reservation records a reserve outcome
func (m *Metrics) Reservation(kind, outcome string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(kind, outcome).Inc()
}

// Transition records a lifecycle transition attempt
func (m *Metrics) Transition(to, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(to, outcome).Inc()
}

// Callback records a reconciliation callback result
func (m *Metrics) Callback(source, result string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(source, result).Inc()
}

// Sweep records one sweep run
func (m *Metrics) Sweep(expired, errors int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SweepExpiredTotal.Add(float64(expired))
	m.SweepErrorsTotal.Add(float64(errors))
	m.SweepDuration.Observe(elapsed.Seconds())
}

// GatewayCall records gateway order latency
func (m *Metrics) GatewayCall(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayDuration.Observe(elapsed.Seconds())
}
