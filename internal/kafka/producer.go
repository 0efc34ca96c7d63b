package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingFailed    = "booking_failed"
)

// BookingEvent is published once a booking reaches a terminal state.
type BookingEvent struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	SessionKey       string    `json:"session_key"`
	OrderID          string    `json:"order_id,omitempty"`
	BookingReference string    `json:"booking_reference,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Email            string    `json:"email,omitempty"`
	AmountTotal      int64     `json:"amount_total"`
	Currency         string    `json:"currency"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes payload as JSON. Messages are keyed by session so events for
// one booking stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
