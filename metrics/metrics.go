package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeCreated    = "created"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
	OutcomeSent       = "sent"
	OutcomeSkipped    = "skipped"
	OutcomeWon        = "won"
	OutcomeAlready    = "already_claimed"
	OutcomeLost       = "lost"
)

// Metrics holds the marketplace counters exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ordersPlaced    prometheus.Counter
	orderRejections *prometheus.CounterVec
	driverClaims    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	pushDeliveries  *prometheus.CounterVec
	wsConnections   prometheus.Gauge
	chatMessages    prometheus.Counter
	tasksDropped    prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default returns the process-wide metrics registered on prometheus.DefaultRegisterer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// New builds and registers a metrics set on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delyra_orders_placed_total",
			Help: "Orders committed by the placement transaction.",
		}),
		orderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delyra_order_rejections_total",
			Help: "Order placements rejected, by error code.",
		}, []string{"code"}),
		driverClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delyra_driver_claims_total",
			Help: "Driver self-claim attempts, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delyra_notifications_total",
			Help: "Notification dispatches, by outcome.",
		}, []string{"outcome"}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delyra_push_deliveries_total",
			Help: "Push hand-offs to the delivery provider, by outcome.",
		}, []string{"outcome"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delyra_ws_connections",
			Help: "Open websocket connections on this instance.",
		}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delyra_chat_messages_total",
			Help: "Chat messages persisted and broadcast.",
		}),
		tasksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delyra_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delyra_order_events_total",
			Help: "Order events handed to the publisher, by event type and outcome.",
		}, []string{"type", "outcome"}),
	}

	registerer.MustRegister(
		m.ordersPlaced,
		m.orderRejections,
		m.driverClaims,
		m.notifications,
		m.pushDeliveries,
		m.wsConnections,
		m.chatMessages,
		m.tasksDropped,
		m.eventsPublished,
	)
	return m
}

func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

func (m *Metrics) OrderRejected(code string) {
	if m == nil {
		return
	}
	m.orderRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) DriverClaim(outcome string) {
	if m == nil {
		return
	}
	m.driverClaims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PushDelivery(outcome string) {
	if m == nil {
		return
	}
	m.pushDeliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

func (m *Metrics) ChatMessage() {
	if m == nil {
		return
	}
	m.chatMessages.Inc()
}

func (m *Metrics) TaskDropped() {
	if m == nil {
		return
	}
	m.tasksDropped.Inc()
}

// EventPublished records an order event hand-off; outcome is sent or failed.
func (m *Metrics) EventPublished(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}
