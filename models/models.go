package models

import "github.com/google/uuid"

// ExpenseCreatedExchange is the fanout exchange ExpenseCreatedEvent is
// published to. Its name follows the bus convention namespace:Type.
const ExpenseCreatedExchange = "Expenses.Contracts:Expenses-V1-Events-ExpenseCreatedEvent"

// ExpenseCreatedMessageType tags the envelope of ExpenseCreatedEvent.
const ExpenseCreatedMessageType = "Expenses.Contracts.V1.Events:ExpenseCreatedEvent"

type ExpenseCreatedEvent struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"userId"`
}

type CreateExpenseRequest struct {
	Name   string    `json:"name"`
	Amount float64   `json:"amount"`
	UserID uuid.UUID `json:"userId"`
}

type CreateExpenseResponse struct {
	ID uuid.UUID `json:"id"`
}

type GetExpenseRequest struct {
	ID uuid.UUID `json:"id"`
}

type GetExpenseResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Amount float64   `json:"amount"`
	UserID uuid.UUID `json:"userId"`
}

type DeleteExpenseRequest struct {
	ID uuid.UUID `json:"id"`
}

// Expense is the persisted row; db tags let pgx map query results onto it.
type Expense struct {
	ID     uuid.UUID `json:"id" db:"id"`
	Name   string    `json:"name" db:"name"`
	Amount float64   `json:"amount" db:"amount"`
	UserID uuid.UUID `json:"userId" db:"user_id"`
}

func (e Expense) ToGetResponse() GetExpenseResponse {
	return GetExpenseResponse{ID: e.ID, Name: e.Name, Amount: e.Amount, UserID: e.UserID}
}

type GetUserRequest struct {
	ID uuid.UUID `json:"id"`
}

type User struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	ExpensesCount   int       `json:"expensesCount"`
	MaxExpenseCount int       `json:"maxExpenseCount"`
}

// ReachedLimit reports whether the user may not record another expense.
func (u User) ReachedLimit() bool { return u.ExpensesCount >= u.MaxExpenseCount }

type IncrementExpensesCountRequest struct {
	UserID uuid.UUID `json:"userId"`
}
