package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"expenses/models"
)

// Memory is an in-process expenses repository for unit tests and local runs
// without Postgres.
type Memory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.Expense
}

func NewMemory() *Memory { return &Memory{rows: map[uuid.UUID]models.Expense{}} }

func (m *Memory) SaveExpense(_ context.Context, e models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.ID] = e
	return nil
}

func (m *Memory) GetExpenseByID(_ context.Context, id uuid.UUID) (*models.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *Memory) DeleteExpense(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
