package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"expenses/logger"
	"expenses/models"
	"expenses/queue"
)

const envelopeContentType = "application/vnd.masstransit+json"

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Connection interface {
	Channel() (Channel, error)
	Close() error
}

type amqpConnection struct{ *amqp.Connection }

func (c amqpConnection) Channel() (Channel, error) { return c.Connection.Channel() }

// RabbitPublisher writes enveloped events into durable fanout exchanges named
// after the event type.
type RabbitPublisher struct {
	conn Connection
}

// DialRabbit connects with the same URL rules as the topology engine.
func DialRabbit(cfg queue.Config) (*RabbitPublisher, error) {
	url, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return NewRabbitPublisher(amqpConnection{conn}), nil
}

func NewRabbitPublisher(conn Connection) *RabbitPublisher { return &RabbitPublisher{conn: conn} }

func (p *RabbitPublisher) PublishExpenseCreated(ctx context.Context, ev models.ExpenseCreatedEvent) error {
	return p.publish(ctx, models.ExpenseCreatedExchange, models.ExpenseCreatedMessageType, ev)
}

func (p *RabbitPublisher) publish(ctx context.Context, exchange, messageType string, payload any) error {
	body, err := queue.Wrap(messageType, payload)
	if err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	err = ch.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:  envelopeContentType,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	logger.Debug("event published", logger.FieldKV("exchange", exchange), logger.FieldKV("bytes", len(body)))
	return nil
}

func (p *RabbitPublisher) Close() error { return p.conn.Close() }
