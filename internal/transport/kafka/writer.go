package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"service-delivery-tracking/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventWriter appends status changes to the delivery events topic, keyed by
// delivery id so one delivery's events stay on one partition.
type EventWriter struct {
	w messageWriter
}

// NewEventWriter returns nil when Kafka is not configured.
func NewEventWriter(brokers []string, topic string) *EventWriter {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil
	}
	w := kafkago.NewWriter(kafkago.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	})
	return &EventWriter{w: w}
}

// PublishAll writes status events; location events are not recorded.
func (e *EventWriter) PublishAll(ctx context.Context, groups []string, ev domain.Event) error {
	if ev.Type != domain.EventStatusChanged {
		return nil
	}
	b, err := json.Marshal(FromEvent(groups, ev))
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(ev.DeliveryID.String()),
		Value: b,
		Time:  ev.Timestamp,
	}
	if err := e.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write lifecycle event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (e *EventWriter) Close() error {
	if e == nil {
		return nil
	}
	return e.w.Close()
}
