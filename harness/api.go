package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (f *Fixture) Get(ctx context.Context, path string, out any, creds Credentials) error {
	return f.call(ctx, http.MethodGet, path, nil, out, creds)
}

// Post sends body as JSON. With out == nil the response body is ignored.
func (f *Fixture) Post(ctx context.Context, path string, body, out any, creds Credentials) error {
	return f.call(ctx, http.MethodPost, path, body, out, creds)
}

func (f *Fixture) Put(ctx context.Context, path string, body, out any, creds Credentials) error {
	return f.call(ctx, http.MethodPut, path, body, out, creds)
}

func (f *Fixture) Delete(ctx context.Context, path string, creds Credentials) error {
	return f.call(ctx, http.MethodDelete, path, nil, nil, creds)
}

func (f *Fixture) url(path string) string {
	return strings.TrimRight(f.settings.WebEndpoint, "/") + "/" + strings.TrimLeft(path, "/")
}

func (f *Fixture) call(ctx context.Context, method, path string, body, out any, creds Credentials) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.url(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APICallError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
