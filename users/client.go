// Package users calls the users service the expenses API depends on.
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenses/models"
)

const (
	GetUserPath                = "/users/get-user"
	IncrementExpensesCountPath = "/users/increment-expenses-count"
)

// ErrUserNotFound is returned by GetUser when the service answers 404.
var ErrUserNotFound = errors.New("user not found")

// CallError reports an unexpected status from the users service.
type CallError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("request to users service %s failed. Status code: %d. Response content: %s", e.Path, e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("call users service %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read users service %s response: %w", path, err)
	}
	return resp, respBody, nil
}

// GetUser returns ErrUserNotFound on 404 and *CallError on any other non-200.
func (c *Client) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	resp, body, err := c.post(ctx, GetUserPath, models.GetUserRequest{ID: id})
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var u models.User
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", id, err)
		}
		return &u, nil
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, &CallError{Path: GetUserPath, StatusCode: resp.StatusCode, Body: string(body)}
	}
}

func (c *Client) IncrementExpensesCount(ctx context.Context, userID uuid.UUID) error {
	resp, body, err := c.post(ctx, IncrementExpensesCountPath, models.IncrementExpensesCountRequest{UserID: userID})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &CallError{Path: IncrementExpensesCountPath, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
