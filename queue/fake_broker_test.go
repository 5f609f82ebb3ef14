package queue

import (
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker is a tiny in-memory model of the broker state the engine
// touches: queues, fanout exchanges and bindings.
type fakeBroker struct {
	mu          sync.Mutex
	queues      map[string][][]byte
	exchanges   map[string]string
	queueBinds  map[[2]string]int // {exchange, queue} -> times bound
	exBinds     map[[2]string]int // {source, destination}
	channels    int
	openCount   int
	dialErr     error
	failExDecl  error
	closedConns int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		queues:     map[string][][]byte{},
		exchanges:  map[string]string{},
		queueBinds: map[[2]string]int{},
		exBinds:    map[[2]string]int{},
	}
}

func (b *fakeBroker) Channel() (Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	b.channels++
	b.openCount++
	return &fakeChannel{b: b}, nil
}

func (b *fakeBroker) Close() error {
	b.closedConns++
	return nil
}

func (b *fakeBroker) publish(exchange string, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.route(exchange, body, map[string]bool{})
}

func (b *fakeBroker) route(exchange string, body []byte, seen map[string]bool) {
	if seen[exchange] {
		return
	}
	seen[exchange] = true
	for k := range b.queueBinds {
		if k[0] == exchange {
			b.queues[k[1]] = append(b.queues[k[1]], body)
		}
	}
	for k := range b.exBinds {
		if k[0] == exchange {
			b.route(k[1], body, seen)
		}
	}
}

var errNotFound = &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue"}

type fakeChannel struct {
	b      *fakeBroker
	closed bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if _, ok := c.b.queues[name]; !ok {
		c.b.queues[name] = nil
	}
	return amqp.Queue{Name: name, Messages: len(c.b.queues[name])}, nil
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.b.failExDecl != nil {
		return c.b.failExDecl
	}
	if existing, ok := c.b.exchanges[name]; ok && existing != kind {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg 'type'"}
	}
	c.b.exchanges[name] = kind
	return nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if _, ok := c.b.queues[name]; !ok {
		return errNotFound
	}
	if _, ok := c.b.exchanges[exchange]; !ok {
		return errNotFound
	}
	// bindings are a set on the broker
	c.b.queueBinds[[2]string{exchange, name}] = 1
	return nil
}

func (c *fakeChannel) ExchangeBind(destination, key, source string, noWait bool, args amqp.Table) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if _, ok := c.b.exchanges[destination]; !ok {
		return errNotFound
	}
	c.b.exBinds[[2]string{source, destination}] = 1
	return nil
}

func (c *fakeChannel) QueuePurge(name string, noWait bool) (int, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	msgs, ok := c.b.queues[name]
	if !ok {
		return 0, errNotFound
	}
	c.b.queues[name] = nil
	return len(msgs), nil
}

func (c *fakeChannel) QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	n := len(c.b.queues[name])
	delete(c.b.queues, name)
	for k := range c.b.queueBinds {
		if k[1] == name {
			delete(c.b.queueBinds, k)
		}
	}
	return n, nil
}

func (c *fakeChannel) ExchangeDelete(name string, ifUnused, noWait bool) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	delete(c.b.exchanges, name)
	for k := range c.b.queueBinds {
		if k[0] == name {
			delete(c.b.queueBinds, k)
		}
	}
	return nil
}

func (c *fakeChannel) Get(queue string, autoAck bool) (amqp.Delivery, bool, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	msgs, ok := c.b.queues[queue]
	if !ok {
		return amqp.Delivery{}, false, errNotFound
	}
	if len(msgs) == 0 {
		return amqp.Delivery{}, false, nil
	}
	c.b.queues[queue] = msgs[1:]
	return amqp.Delivery{Body: msgs[0]}, true, nil
}

func (c *fakeChannel) Close() error {
	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	c.b.mu.Lock()
	c.b.channels--
	c.b.mu.Unlock()
	return nil
}
