package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order event types, also used as the kafka "event_type" header.
const (
	OrderPlaced         = "order.placed"
	OrderStatusChanged  = "order.status_changed"
	OrderDriverAssigned = "order.driver_assigned"
	OrderAccepted       = "order.accepted"
)

const producerName = "delyra-api"

// Envelope wraps every payload published on the order topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID     uint            `json:"order_id"`
	ClientID    uint            `json:"client_id"`
	BusinessID  uint            `json:"business_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []ItemQty       `json:"items"`
}

type StatusChangedPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
	Role    string `json:"changed_by_role"`
}

// DriverPayload is shared by driver assignment and driver self-claim.
type DriverPayload struct {
	OrderID  uint `json:"order_id"`
	DriverID uint `json:"driver_id"`
}

// Publisher hands order events to the event bus. Publish must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, eventType string, orderID uint, payload any) error
	Close() error
}

// NewEnvelope builds a versioned envelope for payload, correlated by order id.
func NewEnvelope(eventType string, orderID uint, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: PartitionKey(orderID),
		Payload:       raw,
	}, nil
}

// PartitionKey keys all events of one order to the same partition so they stay ordered.
func PartitionKey(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}

// NoopPublisher discards events; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, uint, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
