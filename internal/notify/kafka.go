package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/web3-frozen/token-insight/internal/monitor"
)

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes alerts as JSON, keyed by symbol so one symbol's alerts
// stay ordered within a partition.
type Kafka struct {
	writer MessageWriter
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaWithWriter(w), nil
}

func NewKafkaWithWriter(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

func (k *Kafka) Notify(ctx context.Context, a monitor.Alert) error {
	v, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("kafka: marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.Symbol),
		Value: v,
		Time:  a.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("sentiment_shift")},
			{Key: "direction", Value: []byte(a.Direction)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }
