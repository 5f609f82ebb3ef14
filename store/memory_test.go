package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"expenses/models"
)

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e := models.Expense{ID: uuid.New(), Name: "book", Amount: 9.99, UserID: uuid.New()}

	if _, err := m.GetExpenseByID(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.SaveExpense(ctx, e); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := m.GetExpenseByID(ctx, e.ID)
	if err != nil || *got != e {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := m.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteExpense(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
