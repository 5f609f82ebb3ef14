package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/models"
	"expenses/stub"
)

func startStub(t *testing.T, endpoints ...stub.Endpoint) *stub.Server {
	t.Helper()
	s := stub.NewServer("http://127.0.0.1:0", endpoints...)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestGetUser(t *testing.T) {
	want := models.User{ID: uuid.New(), Name: "Test User", ExpensesCount: 2, MaxExpenseCount: 10}
	s := startStub(t, stub.Route{Method: stub.Post, Path: GetUserPath, Body: want})

	got, err := NewClient(s.URL(), nil).GetUser(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	reqs := s.RequestsFor(GetUserPath)
	require.Len(t, reqs, 1)
	var sent models.GetUserRequest
	require.NoError(t, json.Unmarshal([]byte(reqs[0].BodyJSON), &sent))
	assert.Equal(t, want.ID, sent.ID)
}

func TestGetUserNotFound(t *testing.T) {
	s := startStub(t, stub.Route{Method: stub.Post, Path: GetUserPath, StatusCode: http.StatusNotFound})
	u, err := NewClient(s.URL(), nil).GetUser(context.Background(), uuid.New())
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUserUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/", nil).GetUser(context.Background(), uuid.New())
	var ce *CallError
	require.True(t, errors.As(err, &ce), "expected CallError, got %v", err)
	assert.Equal(t, http.StatusBadGateway, ce.StatusCode)
	assert.Contains(t, ce.Body, "boom")
}

func TestIncrementExpensesCount(t *testing.T) {
	s := startStub(t, stub.Route{Method: stub.Post, Path: IncrementExpensesCountPath})
	userID := uuid.New()
	require.NoError(t, NewClient(s.URL(), nil).IncrementExpensesCount(context.Background(), userID))

	reqs := s.RequestsFor(IncrementExpensesCountPath)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"userId":"`+userID.String()+`"}`, reqs[0].BodyJSON)
}

func TestIncrementExpensesCountRejected(t *testing.T) {
	s := startStub(t, stub.Route{Method: stub.Post, Path: IncrementExpensesCountPath, StatusCode: http.StatusNotFound})
	err := NewClient(s.URL(), nil).IncrementExpensesCount(context.Background(), uuid.New())
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusNotFound, ce.StatusCode)
	assert.Empty(t, s.Requests())
}
