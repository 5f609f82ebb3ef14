package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"expenses/harness"
	"expenses/models"
	"expenses/stub"
	"expenses/users"
)

type userBuilder struct {
	models.User
}

func newUser() *userBuilder {
	return &userBuilder{models.User{ID: uuid.New(), Name: "Test User", ExpensesCount: 0, MaxExpenseCount: 10}}
}

func (b *userBuilder) withExpensesCount(n int) *userBuilder   { b.ExpensesCount = n; return b }
func (b *userBuilder) withMaxExpenseCount(n int) *userBuilder { b.MaxExpenseCount = n; return b }
func (b *userBuilder) toGetUserResponse() models.User         { return b.User }

type expenseBuilder struct {
	ID     uuid.UUID
	Name   string
	Amount float64
	UserID uuid.UUID
}

func newExpense() *expenseBuilder {
	return &expenseBuilder{Name: "Test Expense", Amount: 10, UserID: uuid.New()}
}

func (b *expenseBuilder) withName(name string) *expenseBuilder    { b.Name = name; return b }
func (b *expenseBuilder) withAmount(a float64) *expenseBuilder    { b.Amount = a; return b }
func (b *expenseBuilder) withUserID(id uuid.UUID) *expenseBuilder { b.UserID = id; return b }

func (b *expenseBuilder) toCreateRequest() models.CreateExpenseRequest {
	return models.CreateExpenseRequest{Name: b.Name, Amount: b.Amount, UserID: b.UserID}
}

func (b *expenseBuilder) toGetResponse() models.GetExpenseResponse {
	return models.GetExpenseResponse{ID: b.ID, Name: b.Name, Amount: b.Amount, UserID: b.UserID}
}

func (b *expenseBuilder) toCreatedEvent() models.ExpenseCreatedEvent {
	return models.ExpenseCreatedEvent{ID: b.ID, UserID: b.UserID}
}

func (b *expenseBuilder) toEntity() models.Expense {
	return models.Expense{ID: b.ID, Name: b.Name, Amount: b.Amount, UserID: b.UserID}
}

// create calls the API and remembers the assigned id.
func (b *expenseBuilder) create(sc *scenario) (models.CreateExpenseResponse, error) {
	var resp models.CreateExpenseResponse
	err := sc.Post(sc.ctx, "api/expenses/create-expense", b.toCreateRequest(), &resp, sc.creds)
	if err == nil {
		b.ID = resp.ID
	}
	return resp, err
}

// saveAndWait creates the expense and consumes its ExpenseCreatedEvent.
func (b *expenseBuilder) saveAndWait(t *testing.T, sc *scenario) *expenseBuilder {
	t.Helper()
	if _, err := b.create(sc); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	want := b.toCreatedEvent()
	_, err := harness.WaitForMessage(sc.ctx, sc.Fixture, sc.TestQueue(), func(c *harness.Check, ev models.ExpenseCreatedEvent) {
		assert.Equal(c, want, ev)
	})
	if err != nil {
		t.Fatalf("wait for expense created event: %v", err)
	}
	return b
}

// usersFake stands in for the users service at the configured URL.
type usersFake struct {
	sc        *scenario
	endpoints []stub.Endpoint
	server    *stub.Server
}

func (u *usersFake) withGetUser(user models.User) *usersFake {
	u.endpoints = append(u.endpoints, stub.Route{Method: stub.Post, Path: users.GetUserPath, Body: user})
	return u
}

func (u *usersFake) withUserNotFound(user models.User) *usersFake {
	u.endpoints = append(u.endpoints, stub.Route{Method: stub.Post, Path: users.GetUserPath, StatusCode: http.StatusNotFound, Body: user})
	return u
}

func (u *usersFake) start(t *testing.T) {
	t.Helper()
	s, err := u.sc.StartStub(u.sc.Settings().UsersServicePath, u.endpoints...)
	if err != nil {
		t.Fatalf("start users fake: %v", err)
	}
	u.server = s
}

func (u *usersFake) requests() []stub.CapturedRequest { return u.server.Requests() }
