package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"expenses/logger"
	"expenses/models"
	"expenses/queue"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes enveloped events keyed by expense id. Events that
// cannot be written to the main topic are copied to the error topic with the
// failure reason in a header.
type KafkaPublisher struct {
	writer      MessageWriter
	errorWriter MessageWriter
}

func NewKafkaPublisher(broker, topic, errorTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer:      &kafka.Writer{Addr: kafka.TCP(broker), Topic: topic, Balancer: &kafka.LeastBytes{}, AllowAutoTopicCreation: true},
		errorWriter: &kafka.Writer{Addr: kafka.TCP(broker), Topic: errorTopic, Balancer: &kafka.LeastBytes{}, AllowAutoTopicCreation: true},
	}
}

func NewKafkaPublisherWithWriters(w, errorWriter MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, errorWriter: errorWriter}
}

func (p *KafkaPublisher) PublishExpenseCreated(ctx context.Context, ev models.ExpenseCreatedEvent) error {
	body, err := queue.Wrap(models.ExpenseCreatedMessageType, ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(ev.ID.String()), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("kafka write failed", err, logger.FieldKV("expense_id", ev.ID.String()))
		if p.errorWriter != nil {
			msg.Headers = append(msg.Headers, kafka.Header{Key: "error", Value: []byte(err.Error())})
			if derr := p.errorWriter.WriteMessages(ctx, msg); derr != nil {
				logger.Error("kafka error topic write failed", derr, logger.FieldKV("expense_id", ev.ID.String()))
			}
		}
		return fmt.Errorf("write expense created event: %w", err)
	}
	logger.Debug("event published", logger.FieldKV("expense_id", ev.ID.String()))
	return nil
}

func (p *KafkaPublisher) Close() error {
	var errs []error
	if err := p.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.errorWriter != nil {
		if err := p.errorWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
