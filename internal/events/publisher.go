// Package events publishes shipment domain events to Kafka.
package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeCreated         = "shipment.created"
	TypeLocationUpdated = "shipment.location_updated"
	TypeDelivered       = "shipment.delivered"
)

// Event is the envelope written to the topic. The message key is the
// shipment code so all events of one shipment land on the same partition.
type Event struct {
	Type       string    `json:"type"`
	Code       string    `json:"code"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher emits domain events. Publishing never blocks the caller's
// request path and never fails it.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// ─── NopPublisher ───────────────────────────────────────────

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
func (NopPublisher) Close() error  { return nil }

// ─── KafkaPublisher ─────────────────────────────────────────

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic in the background.
type KafkaPublisher struct {
	writer  Writer
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, timeout)
}

// NewKafkaPublisherWithWriter creates a publisher over an arbitrary writer.
func NewKafkaPublisherWithWriter(w Writer, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: timeout}
}

// Publish writes ev asynchronously. Failures are logged and dropped.
func (p *KafkaPublisher) Publish(ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.write(ctx, ev); err != nil {
			log.Printf("[events] publish %s for %s failed: %v", ev.Type, ev.Code, err)
		}
	}()
}

func (p *KafkaPublisher) write(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Code),
		Value: value,
		Time:  ev.OccurredAt,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
