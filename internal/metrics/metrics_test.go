package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Reservation("BUS_SEAT", "ok")
	m.Reservation("BUS_SEAT", "ok")
	m.Reservation("BUS_SEAT", "slot_unavailable")
	m.Callback("client_callback", "signature_invalid")
	m.Sweep(3, 1, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("BUS_SEAT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("BUS_SEAT", "slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbacksTotal.WithLabelValues("client_callback", "signature_invalid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepExpiredTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepErrorsTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Reservation("BUS_SEAT", "ok")
		m.Transition("PAID", "ok")
		m.Callback("gateway_webhook", "paid")
		m.Sweep(1, 0, time.Millisecond)
		m.GatewayCall(time.Millisecond)
	})
}
