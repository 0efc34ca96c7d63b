package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	log     logger.Logger
	retries int
	backoff time.Duration
}

func NewConsumer(brokers []string, groupID, topic string, log logger.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}), log)
}

func newConsumer(reader messageReader, log logger.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		log:     log,
		retries: 3,
		backoff: time.Second,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume delivers booking events at least once. A failing handler is retried
// with backoff; after the last attempt the event is logged and committed so one
// bad delivery cannot stall the partition. Undecodable messages are committed
// and skipped. Consume returns only when ctx ends or the reader fails.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, BookingEvent) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		event, err := DecodeBookingEvent(msg.Value)
		if err != nil {
			c.log.Warn("skipping undecodable booking event", "offset", msg.Offset, "error", err)
		} else if err := c.handle(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("dropping booking event after retries",
				"event_id", event.ID, "type", event.Type, "session_key", event.SessionKey, "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, event BookingEvent, handler func(context.Context, BookingEvent) error) error {
	var err error
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		if err = handler(ctx, event); err == nil {
			return nil
		}
		if attempt > c.retries {
			return err
		}
		c.log.Warn("booking event handler failed, retrying", "event_id", event.ID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BookingEvent{}, err
	}
	if event.Type == "" || event.SessionKey == "" {
		return BookingEvent{}, errors.New("booking event missing type or session key")
	}
	return event, nil
}
