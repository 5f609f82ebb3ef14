package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"expenses/logger"
)

// ErrInvalidPort is returned by Dial for a port that is not a valid int32.
var ErrInvalidPort = errors.New("invalid rabbitmq port")

const exchangeKindFanout = "fanout"

// Channel is the subset of *amqp.Channel the engine uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	ExchangeBind(destination, key, source string, noWait bool, args amqp.Table) error
	QueuePurge(name string, noWait bool) (int, error)
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	ExchangeDelete(name string, ifUnused, noWait bool) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Close() error
}

// Connection opens channels. *amqp.Connection satisfies it through
// AMQPConnection.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// AMQPConnection adapts *amqp.Connection to Connection.
type AMQPConnection struct{ *amqp.Connection }

func (c AMQPConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Config describes how to reach the broker.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	VHost    string
}

// URL renders the amqp:// URL for c. The port must parse as an int32.
func (c Config) URL() (string, error) {
	port, err := strconv.ParseInt(c.Port, 10, 32)
	if err != nil || port <= 0 {
		return "", fmt.Errorf("%w: '%s' is not a valid Int32 value for the 'port' connection option", ErrInvalidPort, c.Port)
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + strconv.FormatInt(port, 10),
		Path:   "/",
	}
	if c.VHost != "" && c.VHost != "/" {
		u.Path = "/" + c.VHost
	}
	return u.String(), nil
}

// RabbitMQ is the Engine backed by a RabbitMQ broker. It holds one connection
// for its lifetime and opens a fresh channel per operation.
type RabbitMQ struct {
	conn Connection
}

var _ Engine = (*RabbitMQ)(nil)

// Dial connects to the broker described by cfg.
func Dial(ctx context.Context, cfg Config) (*RabbitMQ, error) {
	uri, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	logger.Info("rabbitmq connected", logger.FieldKV("host", cfg.Host), logger.FieldKV("port", cfg.Port))
	return NewRabbitMQ(AMQPConnection{conn}), nil
}

// NewRabbitMQ wraps an existing connection.
func NewRabbitMQ(conn Connection) *RabbitMQ { return &RabbitMQ{conn: conn} }

// withChannel runs fn on a short-lived channel. Once the broker closes a
// channel with an error (e.g. 404 on purge) the channel is unusable, so each
// logical operation gets its own.
func (r *RabbitMQ) withChannel(ctx context.Context, fn func(Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	return fn(ch)
}

// CreateQueueIfAbsent declares, for each lower-cased name, the durable queue,
// its same-named fanout exchange and the binding between them, then the same
// triple for the "_error" companion. Declares are idempotent on the broker.
func (r *RabbitMQ) CreateQueueIfAbsent(ctx context.Context, names ...string) error {
	for _, name := range names {
		queueName := strings.ToLower(name)
		err := r.withChannel(ctx, func(ch Channel) error {
			if err := declareBoundQueue(ch, queueName); err != nil {
				return err
			}
			return declareBoundQueue(ch, ErrorQueueName(queueName))
		})
		if err != nil {
			return err
		}
		logger.Debug("queue topology ensured", logger.FieldKV("queue", queueName))
	}
	return nil
}

func declareBoundQueue(ch Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := ch.ExchangeDeclare(name, exchangeKindFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	if err := ch.QueueBind(name, "", name, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", name, err)
	}
	return nil
}

// PurgeQueue drops every message in name. A missing queue is not an error:
// the broker offers no existence check, only a 404 channel close.
func (r *RabbitMQ) PurgeQueue(ctx context.Context, name string) error {
	err := r.withChannel(ctx, func(ch Channel) error {
		_, err := ch.QueuePurge(name, false)
		return err
	})
	if IsNotFound(err) {
		logger.Debug("purge skipped, queue missing", logger.FieldKV("queue", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("purge %s: %w", name, err)
	}
	return nil
}

// PurgeQueues purges each queue in order.
func (r *RabbitMQ) PurgeQueues(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := r.PurgeQueue(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// DeleteQueue removes the exchange and the queue called name.
func (r *RabbitMQ) DeleteQueue(ctx context.Context, name string) error {
	return r.withChannel(ctx, func(ch Channel) error {
		if err := ch.ExchangeDelete(name, false, false); err != nil {
			return fmt.Errorf("delete exchange %s: %w", name, err)
		}
		if _, err := ch.QueueDelete(name, false, false, false); err != nil {
			return fmt.Errorf("delete queue %s: %w", name, err)
		}
		return nil
	})
}

// BindQueueToExchange attaches queue to the fanout exchange, declaring the
// exchange first if needed.
func (r *RabbitMQ) BindQueueToExchange(ctx context.Context, queue, exchange string) error {
	queueName := strings.ToLower(queue)
	return r.withChannel(ctx, func(ch Channel) error {
		if err := ch.ExchangeDeclare(exchange, exchangeKindFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		if err := ch.QueueBind(queueName, "", exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", queueName, exchange, err)
		}
		return nil
	})
}

// BindExchangeToExchange declares from as fanout and routes everything
// published to it into to.
func (r *RabbitMQ) BindExchangeToExchange(ctx context.Context, from, to string) error {
	return r.withChannel(ctx, func(ch Channel) error {
		if err := ch.ExchangeDeclare(from, exchangeKindFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", from, err)
		}
		if err := ch.ExchangeBind(to, "", from, false, nil); err != nil {
			return fmt.Errorf("bind exchange %s to %s: %w", from, to, err)
		}
		return nil
	})
}

// ReadRawMessage takes one message off name with auto-ack and returns the
// unwrapped payload. An empty or missing queue yields ok == false.
func (r *RabbitMQ) ReadRawMessage(ctx context.Context, name string) (string, bool, error) {
	var body []byte
	var got bool
	err := r.withChannel(ctx, func(ch Channel) error {
		d, ok, err := ch.Get(name, true)
		if err != nil {
			return err
		}
		body, got = d.Body, ok
		return nil
	})
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get from %s: %w", name, err)
	}
	if !got {
		return "", false, nil
	}
	return Unwrap(body)
}

// IsEmpty reports whether a non-blocking fetch on name yields nothing. A
// message that is present is consumed.
func (r *RabbitMQ) IsEmpty(ctx context.Context, name string) (bool, error) {
	var got bool
	err := r.withChannel(ctx, func(ch Channel) error {
		_, ok, err := ch.Get(name, true)
		got = ok
		return err
	})
	if IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get from %s: %w", name, err)
	}
	return !got, nil
}

// Close releases the broker connection.
func (r *RabbitMQ) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// IsNotFound reports whether err is the broker's 404 channel exception.
func IsNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}

// IsConnectionClosed reports whether err means the connection is gone, which
// no amount of retrying will fix.
func IsConnectionClosed(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.ConnectionForced
}
