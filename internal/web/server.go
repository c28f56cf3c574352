// Package web exposes the engine over JSON HTTP.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/intent"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const maxBodyBytes = 64 << 10

// Engine runs commands.
type Engine interface {
	Handle(ctx context.Context, text string) (orchestrator.Result, error)
	Execute(ctx context.Context, in model.Intent) (orchestrator.Result, error)
}

// Tasks reads the local index.
type Tasks interface {
	Get(ctx context.Context, id string) (model.TaskRecord, error)
	List(ctx context.Context, f index.Filter) ([]model.TaskRecord, error)
}

// History reads the command journal.
type History interface {
	RecentCommands(ctx context.Context, limit int) ([]db.CommandRecord, error)
	CommandItems(ctx context.Context, correlationID string) ([]db.ItemRecord, error)
}

// Server provides the HTTP handlers.
type Server struct {
	engine  Engine
	tasks   Tasks
	history History
	logger  zerolog.Logger
}

// NewServer creates a new web server. history may be nil.
func NewServer(engine Engine, tasks Tasks, history History, logger zerolog.Logger) *Server {
	return &Server{engine: engine, tasks: tasks, history: history, logger: logger}
}

// Routes returns the router for the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, _ time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Msg("request")
	}))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/commands", s.handleCommand)
	r.Post("/api/intents", s.handleIntent)
	r.Get("/api/tasks", s.handleListTasks)
	r.Get("/api/tasks/{id}", s.handleGetTask)
	if s.history != nil {
		r.Get("/api/history", s.handleHistory)
		r.Get("/api/history/{id}", s.handleHistoryItems)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type commandRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, failure.Validation("decode command", err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, failure.Validation("decode command", "text is required"))
		return
	}
	res, err := s.engine.Handle(r.Context(), req.Text)
	writeResult(w, res, err)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, failure.Validation("read intent", err.Error()))
		return
	}
	intents, err := intent.DecodeJSON(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(intents) == 1 {
		res, err := s.engine.Execute(r.Context(), intents[0])
		writeResult(w, res, err)
		return
	}
	// Batches run in order and always answer 200 with per-intent results.
	results := make([]orchestrator.Result, 0, len(intents))
	for _, in := range intents {
		res, _ := s.engine.Execute(r.Context(), in)
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := index.Filter{
		ContainerID:   q.Get("container_id"),
		Tag:           q.Get("tag"),
		TitleContains: q.Get("q"),
		Status:        model.Status(q.Get("status")),
	}
	switch f.Status {
	case "", model.StatusActive, model.StatusCompleted:
	default:
		writeError(w, failure.Validation("list tasks", "status must be active or completed"))
		return
	}
	recs, err := s.tasks.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []model.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, failure.Validation("list history", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	cmds, err := s.history.RecentCommands(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if cmds == nil {
		cmds = []db.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (s *Server) handleHistoryItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.history.CommandItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []db.ItemRecord{}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeResult(w http.ResponseWriter, res orchestrator.Result, err error) {
	if err != nil {
		writeJSON(w, statusFor(res.Code), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Code  failure.Kind `json:"code"`
	Error string       `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := failure.KindOf(err)
	if code == "" {
		code = failure.KindInternal
	}
	writeJSON(w, statusFor(code), errorBody{Code: code, Error: err.Error()})
}

// statusFor maps a failure kind to an HTTP status.
func statusFor(kind failure.Kind) int {
	switch kind {
	case failure.KindValidation, failure.KindUnsupported:
		return http.StatusBadRequest
	case failure.KindParse:
		return http.StatusUnprocessableEntity
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindRemoteRejected:
		return http.StatusBadGateway
	case failure.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case failure.KindCanceled:
		return http.StatusRequestTimeout
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
