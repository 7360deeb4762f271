package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderPlaced()
	m.OrderPlaced()
	m.OrderRejected("INSUFFICIENT_STOCK")
	m.DriverClaim(OutcomeWon)
	m.DriverClaim(OutcomeLost)
	m.DriverClaim(OutcomeLost)
	m.Notification(OutcomeSuppressed)
	m.PushDelivery(OutcomeFailed)
	m.ChatMessage()
	m.TaskDropped()
	m.EventPublished("order.placed", OutcomeSent)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.orderRejections.WithLabelValues("INSUFFICIENT_STOCK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.driverClaims.WithLabelValues(OutcomeWon)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.driverClaims.WithLabelValues(OutcomeLost)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifications.WithLabelValues(OutcomeSuppressed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pushDeliveries.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.chatMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsPublished.WithLabelValues("order.placed", OutcomeSent)))
}

func TestConnectionGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.wsConnections))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderPlaced()
		m.OrderRejected("NO_ITEMS")
		m.ConnectionOpened()
		m.TaskDropped()
	})
}
