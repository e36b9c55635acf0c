// Package api exposes the staff-facing JSON surface: task queries per
// department or sender, the reply endpoint, and on-demand ingestion.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/appless/helpdesk/internal/ingest"
	"github.com/appless/helpdesk/internal/model"
	"github.com/appless/helpdesk/internal/reply"
	"github.com/appless/helpdesk/internal/store"
)

// Server handles the HTTP API.
type Server struct {
	store  store.Store
	reply  *reply.Service
	runner ingest.Runner
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer wires the API routes. runner may be nil when on-demand
// ingestion is not exposed (e.g. one-shot CLI mode).
func NewServer(s store.Store, replySvc *reply.Service, runner ingest.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		store:  s,
		reply:  replySvc,
		runner: runner,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/departments", server.handleDepartments)
	mux.HandleFunc("GET /api/tasks", server.handleTasks)
	mux.HandleFunc("POST /api/reply", server.handleReply)
	mux.HandleFunc("POST /api/ingest", server.handleIngest)
	mux.HandleFunc("GET /health", server.handleHealth)
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response", "error", err)
	}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorResponse{OK: false, Code: code, Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDepartments(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"departments": model.Departments(),
	})
}

// taskWithUpdates is a task together with its ordered journal.
type taskWithUpdates struct {
	model.Task
	Updates []model.Update `json:"updates"`
}

type tasksResponse struct {
	Tasks    []taskWithUpdates `json:"tasks"`
	Total    int               `json:"total"`
	Pending  int               `json:"pending"`
	Resolved int               `json:"resolved"`
}

// handleTasks lists tasks filtered by department or by an owner-email
// substring, newest first, each with its update journal and summary
// counts.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskFilter{
		OwnerQuery: strings.TrimSpace(r.URL.Query().Get("owner")),
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
	}

	if dept := strings.TrimSpace(r.URL.Query().Get("department")); dept != "" {
		// Reject unknown department names instead of silently mapping
		// them to IT; the normalization guard is for extractor output,
		// not for URLs.
		normalized := model.NormalizeDepartment(dept)
		if !strings.EqualFold(string(normalized), dept) {
			s.writeError(w, http.StatusBadRequest, "invalid_department",
				"unknown department: "+dept)
			return
		}
		filter.Department = string(normalized)
	}

	tasks, err := s.store.GetTasks(r.Context(), filter)
	if err != nil {
		s.logger.Error("querying tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query_failed", "could not query tasks")
		return
	}

	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	updates, err := s.store.GetUpdatesForTasks(r.Context(), ids)
	if err != nil {
		s.logger.Error("querying task updates", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query_failed", "could not query updates")
		return
	}

	resp := tasksResponse{Tasks: make([]taskWithUpdates, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskWithUpdates{
			Task:    t,
			Updates: append([]model.Update{}, updates[t.ID]...),
		})
		switch t.Status {
		case model.StatusPending:
			resp.Pending++
		case model.StatusResolved:
			resp.Resolved++
		}
	}
	resp.Total = len(tasks)

	s.writeJSON(w, http.StatusOK, resp)
}

type replyRequest struct {
	TaskID  int64  `json:"task_id"`
	Message string `json:"message"`
}

type replyResponse struct {
	OK       bool  `json:"ok"`
	TaskID   int64 `json:"task_id"`
	Resolved bool  `json:"resolved"`
}

// handleReply submits a staff reply. Failure codes mirror how far the
// flow got: missing_input and task_not_found before any side effect,
// send_failed before anything was recorded, record_failed and
// resolve_failed after the mail already went out.
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "missing_input", "invalid JSON body")
		return
	}

	result, err := s.reply.Send(r.Context(), req.TaskID, req.Message)
	if err != nil {
		var sendErr *reply.SendError
		var recordErr *reply.RecordError
		var resolveErr *reply.ResolveError

		switch {
		case errors.Is(err, reply.ErrMissingInput):
			s.writeError(w, http.StatusBadRequest, "missing_input", "missing task_id or message")
		case errors.Is(err, reply.ErrTaskNotFound):
			s.writeError(w, http.StatusNotFound, "task_not_found",
				"no task with id "+strconv.FormatInt(req.TaskID, 10))
		case errors.As(err, &sendErr):
			s.writeError(w, http.StatusBadGateway, "send_failed", err.Error())
		case errors.As(err, &recordErr):
			// The email went out; only the journal write failed.
			s.writeError(w, http.StatusInternalServerError, "record_failed", err.Error())
		case errors.As(err, &resolveErr):
			s.writeError(w, http.StatusInternalServerError, "resolve_failed", err.Error())
		default:
			s.logger.Error("reply failed", "task_id", req.TaskID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal", "reply failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, replyResponse{
		OK:       true,
		TaskID:   result.TaskID,
		Resolved: result.Resolved,
	})
}

type ingestResponse struct {
	OK      bool   `json:"ok"`
	Cursor  uint32 `json:"cursor"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// handleIngest runs one ingestion batch synchronously.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "ingest_unavailable", "ingestion is not configured")
		return
	}

	report, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("on-demand ingestion failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "ingest_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		OK:      true,
		Cursor:  report.EndCursor,
		Created: report.Count(ingest.OutcomeCreated),
		Updated: report.Count(ingest.OutcomeUpdated),
		Skipped: report.Count(ingest.OutcomeSkipped),
		Failed:  report.Count(ingest.OutcomeFailed),
	})
}
