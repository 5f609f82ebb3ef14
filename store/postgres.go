// Package store persists expenses in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"expenses/models"
)

// ErrNotFound is returned when no expense has the requested id.
var ErrNotFound = errors.New("expense not found")

type Postgres struct{ DB *sql.DB }

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close() error { return p.DB.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS expenses (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  amount NUMERIC(18,2) NOT NULL,
  user_id UUID NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses(user_id);
`)
	if err != nil {
		return fmt.Errorf("migrate expenses: %w", err)
	}
	return nil
}

func (p *Postgres) SaveExpense(ctx context.Context, e models.Expense) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO expenses (id, name, amount, user_id) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Name, e.Amount, e.UserID)
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

func (p *Postgres) GetExpenseByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var e models.Expense
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, name, amount, user_id FROM expenses WHERE id=$1`, id).
		Scan(&e.ID, &e.Name, &e.Amount, &e.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select expense %s: %w", id, err)
	}
	return &e, nil
}

// DeleteExpense removes the row; deleting a missing id is ErrNotFound.
func (p *Postgres) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM expenses WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
