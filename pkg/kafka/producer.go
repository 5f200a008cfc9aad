// Package kafka carries build events over Kafka with segmentio/kafka-go. The
// builder publishes one JSON event per stage and bucket; the events
// subcommand follows the topic with a consumer group.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one message: Key picks the partition, Value is sent as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes events synchronously to the build-events topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	topic := cfg.Topics.BuildEvents
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            1,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish marshals event.Value and writes it. Retries are left to the
// caller.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish event", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("event published", "key", event.Key, "value_size", len(msg.Value))
	return nil
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling event %s: %w", event.Key, err)
	}
	return kafka.Message{Key: []byte(event.Key), Value: value}, nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Ping dials the brokers in order and reports an error only when none
// answers.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	var lastErr error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("dialing kafka brokers: %w", lastErr)
}
