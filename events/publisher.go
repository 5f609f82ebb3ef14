// Package events publishes domain events emitted by the expenses API.
package events

import (
	"context"

	"expenses/models"
)

// Publisher emits ExpenseCreatedEvent to whichever transport is configured.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, ev models.ExpenseCreatedEvent) error
	Close() error
}
