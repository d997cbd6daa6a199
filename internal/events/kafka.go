package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events keyed by transaction id.
type Kafka struct {
	w messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Warn(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	}}
}

func message(e Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Transaction.ID),
		Value: b,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	msg, err := message(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return k.w.WriteMessages(ctx, msg)
}

func (k *Kafka) Close() error { return k.w.Close() }
