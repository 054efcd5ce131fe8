package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"banking-ledger/internal/domain"
)

// Publisher emits a history record every time it reaches a terminal status.
// Downstream consumers (notifications, reporting) subscribe to the stream;
// the ledger itself never reads it back.
type Publisher interface {
	PublishRecord(ctx context.Context, record *domain.TransferHistoryRecord) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) PublishRecord(ctx context.Context, record *domain.TransferHistoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(record.ID.String()),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish history record",
			"record_id", record.ID,
			"error", err)
		return fmt.Errorf("failed to publish history record: %w", err)
	}

	p.logger.Debug("History record published", "record_id", record.ID, "status", record.Status)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

// NoopPublisher is used when no broker is configured; the ledger core never
// depends on a broker being reachable.
type NoopPublisher struct{}

func (NoopPublisher) PublishRecord(ctx context.Context, record *domain.TransferHistoryRecord) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
