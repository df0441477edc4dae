// Package server exposes the task supervisor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/steelcut-optimizer/internal/service"
	"github.com/steelcut-optimizer/pkg/config"
	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/utils"
)

// TaskService is the supervisor surface the HTTP layer depends on.
type TaskService interface {
	SubmitOptimization(ctx context.Context, req *model.OptimizeRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, limit int, status model.TaskStatus) ([]*model.Task, error)
	CancelTask(ctx context.Context, taskID string) (*model.Task, error)
	ValidateConstraints(ctx context.Context, req *model.OptimizeRequest) (*model.ValidationResult, error)
	GetStats(ctx context.Context) (*service.Stats, error)
	HealthCheck(ctx context.Context) error
}

// Server is the HTTP front of the optimization service.
type Server struct {
	svc     TaskService
	cfg     config.ServerConfig
	version string
	logger  utils.Logger
	server  *http.Server
}

// NewServer creates an HTTP server from the given configuration.
func NewServer(svc TaskService, cfg config.ServerConfig, version string, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNullLogger()
	}
	if cfg.ReadTimeoutSec <= 0 {
		cfg.ReadTimeoutSec = 30
	}
	if cfg.WriteTimeoutSec <= 0 {
		cfg.WriteTimeoutSec = 30
	}
	return &Server{
		svc:     svc,
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/optimize", s.handleOptimize)
	mux.HandleFunc("/task/", s.handleTask)
	mux.HandleFunc("/tasks", s.handleListTasks)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/validate-constraints", s.handleValidateConstraints)

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
	}

	s.logger.Info("HTTP API listening on :%d", s.cfg.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// corsMiddleware applies the permissive browser policy to every route.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptimize accepts a job and returns 202 with the task id. The engine
// runs in the background; the response never waits for optimization.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	taskID, err := s.svc.SubmitOptimization(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"taskId":  taskID,
		"status":  string(model.TaskStatusPending),
	})
}

// handleTask serves GET (poll) and DELETE (cancel) on /task/{id}.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/task/")
	if taskID == "" || strings.Contains(taskID, "/") {
		writeError(w, http.StatusNotFound, "task id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.svc.GetTask(r.Context(), taskID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodDelete:
		_, err := s.svc.CancelTask(r.Context(), taskID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "task cancelled",
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleListTasks lists tasks, newest first.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}
	status := model.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := s.svc.ListTasks(r.Context(), limit, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"tasks":   tasks,
		"total":   len(tasks),
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"version":   s.version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStats serves the aggregate task counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleValidateConstraints runs the validator without planning. An invalid
// job is still a 200: the validation verdict is the payload.
func (s *Server) handleValidateConstraints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.svc.ValidateConstraints(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps application error codes onto HTTP statuses. Engine
// failures live in the task row, so only request-shape and lookup problems
// surface here.
func writeServiceError(w http.ResponseWriter, err error) {
	switch apperrors.GetErrorCode(err) {
	case apperrors.CodeNotFound:
		writeError(w, http.StatusNotFound, apperrors.GetErrorMessage(err))
	case apperrors.CodeInvalidInput, apperrors.CodeInvalidConstraints:
		writeError(w, http.StatusBadRequest, apperrors.GetErrorMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, apperrors.GetErrorMessage(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
