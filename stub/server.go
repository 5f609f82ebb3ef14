// Package stub runs in-process HTTP servers that stand in for downstream
// services during integration scenarios and record what they were sent.
package stub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"expenses/logger"
)

const emptyBody = "{}"

// CapturedRequest is one call that reached a recording endpoint.
type CapturedRequest struct {
	Path     string
	BodyJSON string
	Sequence int
}

// Server serves a fixed set of endpoints on the address of its base URL.
type Server struct {
	baseURL   string
	endpoints []Endpoint

	mu       sync.Mutex
	captured []CapturedRequest
	seq      int

	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer prepares a server for baseURL (e.g. "http://localhost:5005").
// Port 0 picks a free port; URL reports the bound address after Start.
func NewServer(baseURL string, endpoints ...Endpoint) *Server {
	return &Server{baseURL: baseURL, endpoints: endpoints}
}

// Handler builds the router for the configured endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, e := range s.endpoints {
		e.mount(r, s.record)
	}
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.srv != nil {
		return errors.New("stub server already started")
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("parse stub url %q: %w", s.baseURL, err)
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("listen %s: %w", u.Host, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("stub server stopped", err, logger.FieldKV("addr", ln.Addr().String()))
		}
	}()
	logger.Debug("stub server listening", logger.FieldKV("addr", ln.Addr().String()), logger.FieldKV("endpoints", len(s.endpoints)))
	return nil
}

// URL returns the base URL clients should call. Before Start it is the
// configured URL.
func (s *Server) URL() string {
	if s.listener == nil {
		return s.baseURL
	}
	u, err := url.Parse(s.baseURL)
	if err != nil || u.Scheme == "" {
		return "http://" + s.listener.Addr().String()
	}
	u.Host = s.listener.Addr().String()
	return u.String()
}

func (s *Server) record(path, bodyJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.captured = append(s.captured, CapturedRequest{Path: path, BodyJSON: bodyJSON, Sequence: s.seq})
}

// Requests returns a copy of everything captured so far, in sequence order.
func (s *Server) Requests() []CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedRequest, len(s.captured))
	copy(out, s.captured)
	return out
}

// RequestsFor filters Requests by path.
func (s *Server) RequestsFor(path string) []CapturedRequest {
	var out []CapturedRequest
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Close stops the server and releases the port. Closing a server that never
// started, or closing twice, is a no-op.
func (s *Server) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	srv := s.srv
	s.srv = nil
	err := srv.Shutdown(ctx)
	<-s.done
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("stub response encode failed", err)
	}
}

// readJSONBody returns the compacted request body. An empty body counts as an
// empty object.
func readJSONBody(req *http.Request) (string, error) {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return emptyBody, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("invalid json body: %w", err)
	}
	return buf.String(), nil
}
