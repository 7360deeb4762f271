package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

// ErrPublisherFull is returned when the inbox buffer is full.
var ErrPublisherFull = errors.New("events: publisher buffer full")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events in an inbox and writes them from a single goroutine.
type KafkaPublisher struct {
	w       messageWriter
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

// NewKafkaPublisher starts a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, buf int, m *metrics.Metrics) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, buf, m)
}

func newKafkaPublisher(w messageWriter, buf int, m *metrics.Metrics) *KafkaPublisher {
	if buf < 1 {
		buf = 1
	}
	p := &KafkaPublisher{
		w:       w,
		metrics: m,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.inbox {
		eventType := headerValue(msg, "event_type")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.metrics.EventPublished(eventType, metrics.OutcomeFailed)
			zap.L().Warn("order event write failed",
				zap.String("event_type", eventType),
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
			continue
		}
		p.metrics.EventPublished(eventType, metrics.OutcomeSent)
	}
}

// Publish enqueues an event for orderID. It does not wait for the broker.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, orderID uint, payload any) error {
	env, err := NewEnvelope(eventType, orderID, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(PartitionKey(orderID)),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "request_id", Value: []byte(id)})
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		p.metrics.EventPublished(eventType, metrics.OutcomeFailed)
		return ErrPublisherFull
	}
}

// Close flushes buffered events and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
