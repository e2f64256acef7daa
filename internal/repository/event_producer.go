package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"portfolio-tracker/internal/dto"

	"github.com/segmentio/kafka-go"
)

// EventProducer publishes portfolio events to the event stream.
type EventProducer interface {
	Publish(ctx context.Context, event dto.PortfolioEvent) error
	Close() error
}

type kafkaEventProducer struct {
	writer *kafka.Writer
}

func NewKafkaEventProducer(brokers []string, topic string) EventProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &kafkaEventProducer{writer: writer}
}

func (p *kafkaEventProducer) Publish(ctx context.Context, event dto.PortfolioEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Keyed by user so one user's events stay ordered on a partition.
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *kafkaEventProducer) Close() error {
	return p.writer.Close()
}

type noopEventProducer struct{}

func NewNoopEventProducer() EventProducer { return noopEventProducer{} }

func (noopEventProducer) Publish(context.Context, dto.PortfolioEvent) error { return nil }

func (noopEventProducer) Close() error { return nil }
