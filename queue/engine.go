// Package queue manages broker topology for integration scenarios and reads
// raw messages back out of it.
package queue

import "context"

// Reader fetches at most one logical message from a named source without
// blocking. ok is false when nothing is available.
type Reader interface {
	ReadRawMessage(ctx context.Context, name string) (payload string, ok bool, err error)
}

// Engine is the topology manager the harness drives before each scenario.
type Engine interface {
	Reader
	CreateQueueIfAbsent(ctx context.Context, names ...string) error
	PurgeQueue(ctx context.Context, name string) error
	PurgeQueues(ctx context.Context, names ...string) error
	DeleteQueue(ctx context.Context, name string) error
	BindQueueToExchange(ctx context.Context, queue, exchange string) error
	BindExchangeToExchange(ctx context.Context, from, to string) error
	IsEmpty(ctx context.Context, name string) (bool, error)
	Close() error
}

// ErrorQueueName is the companion error queue/exchange name for q.
func ErrorQueueName(q string) string { return q + "_error" }
