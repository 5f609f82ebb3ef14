// Package api serves the expenses HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"expenses/events"
	"expenses/logger"
	"expenses/metrics"
	"expenses/models"
	"expenses/store"
	"expenses/users"
)

const (
	MsgNameRequired   = "Name is required"
	MsgAmountPositive = "Amount must be greater than 0"
	MsgUserNotFound   = "User does not exist"
	MsgUserAtLimit    = "User has reached max expense count"
)

const maxBodyBytes = 1 << 20

// Repository abstracts expense persistence.
type Repository interface {
	SaveExpense(ctx context.Context, e models.Expense) error
	GetExpenseByID(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}

// UsersService abstracts the users service lookup.
type UsersService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator wraps handlers that require credentials.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

// Deps are the collaborators of Server. Validator and Ready are optional.
type Deps struct {
	Repo      Repository
	Users     UsersService
	Publisher events.Publisher
	Auth      Authenticator
	Validator *RequestValidator
	Transport string
	Ready     func(ctx context.Context) error
}

type Server struct {
	router chi.Router
	deps   Deps
}

func NewServer(d Deps) *Server {
	s := &Server{router: chi.NewRouter(), deps: d}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", metrics.Handler)
	r.Route("/api/expenses", func(r chi.Router) {
		if s.deps.Auth != nil {
			r.Use(s.deps.Auth.Middleware)
		}
		r.Post("/create-expense", s.observe("/api/expenses/create-expense", s.handleCreate))
		r.Post("/get-expense", s.observe("/api/expenses/get-expense", s.handleGet))
		r.Post("/delete-expense", s.observe("/api/expenses/delete-expense", s.handleDelete))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) observe(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)
		metrics.ObserveRequest(route, ww.Status(), start)
	}
}

// decode validates body against schema and unmarshals it into out. It writes
// the 400 itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, out any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeText(w, http.StatusBadRequest, "bad request")
		return false
	}
	if s.deps.Validator != nil {
		if err := s.deps.Validator.Validate(schema, body); err != nil {
			logger.Debug("request rejected by schema", logger.FieldKV("schema", schema), logger.FieldKV("error", err.Error()))
			writeText(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		writeText(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateExpenseRequest
	if !s.decode(w, r, schemaCreateExpense, &req) {
		return
	}
	if req.Name == "" {
		s.reject(w, "name_required", MsgNameRequired)
		return
	}
	if req.Amount <= 0 {
		s.reject(w, "amount_not_positive", MsgAmountPositive)
		return
	}
	user, err := s.deps.Users.GetUser(r.Context(), req.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		s.reject(w, "user_not_found", MsgUserNotFound)
		return
	}
	if err != nil {
		logger.Error("users service lookup failed", err, logger.FieldKV("user_id", req.UserID.String()))
		writeText(w, http.StatusInternalServerError, "users service unavailable")
		return
	}
	if user.ReachedLimit() {
		s.reject(w, "user_at_limit", MsgUserAtLimit)
		return
	}

	e := models.Expense{ID: uuid.New(), Name: req.Name, Amount: req.Amount, UserID: req.UserID}
	if err := s.deps.Repo.SaveExpense(r.Context(), e); err != nil {
		logger.Error("save expense failed", err, logger.FieldKV("expense_id", e.ID.String()))
		writeText(w, http.StatusInternalServerError, "save failed")
		return
	}
	err = s.deps.Publisher.PublishExpenseCreated(r.Context(), models.ExpenseCreatedEvent{ID: e.ID, UserID: e.UserID})
	metrics.IncEventPublished(s.deps.Transport, err)
	if err != nil {
		logger.Error("publish expense created failed", err, logger.FieldKV("expense_id", e.ID.String()))
		writeText(w, http.StatusInternalServerError, "failed to publish event")
		return
	}
	metrics.IncExpenseCreated()
	logger.Info("expense created", logger.FieldKV("expense_id", e.ID.String()), logger.FieldKV("user_id", e.UserID.String()))
	writeJSON(w, http.StatusOK, models.CreateExpenseResponse{ID: e.ID})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req models.GetExpenseRequest
	if !s.decode(w, r, schemaExpenseID, &req) {
		return
	}
	e, err := s.deps.Repo.GetExpenseByID(r.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("get expense failed", err, logger.FieldKV("expense_id", req.ID.String()))
		writeText(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, e.ToGetResponse())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteExpenseRequest
	if !s.decode(w, r, schemaExpenseID, &req) {
		return
	}
	err := s.deps.Repo.DeleteExpense(r.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("delete expense failed", err, logger.FieldKV("expense_id", req.ID.String()))
		writeText(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) reject(w http.ResponseWriter, reason, msg string) {
	metrics.IncExpenseRejected(reason)
	writeText(w, http.StatusBadRequest, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// writeText sends msg verbatim; clients compare error bodies as exact strings.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
