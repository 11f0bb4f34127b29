// Package kafka publishes and consumes JSON-encoded analytics events with
// segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
)

// Event is one message. Key picks the partition; Value is encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes events to one topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer returns a Producer for topic. Writes are batched and
// asynchronous unless sync is set.
func NewProducer(cfg config.KafkaConfig, topic string, sync bool) *Producer {
	p := &Producer{
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		Async:                  !sync,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.logger.Warn("async publish failed", "count", len(messages), "error", err)
			}
		},
	}
	return p
}

// Publish encodes and writes events. In async mode a nil error only means
// the events were queued.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return fmt.Errorf("marshaling event %s: %w", event.Key, err)
		}
		messages = append(messages, kafka.Message{Key: []byte(event.Key), Value: value})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.topic, err)
	}
	p.logger.Debug("events published", "count", len(messages))
	return nil
}

// Stats returns the writer's counters since the last call.
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
