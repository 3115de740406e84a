// Package api exposes the HTTP interface for the check service.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sitecheck/internal/checker"
	"sitecheck/internal/config"
	"sitecheck/internal/export"
	"sitecheck/internal/job"
	"sitecheck/internal/metrics"
)

// Server wires HTTP handlers to the job manager.
type Server struct {
	router  chi.Router
	manager *job.Manager
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(manager *job.Manager, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager: manager,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.getStats)
		r.Post("/heartbeat", s.heartbeat)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Post("/stop", s.stopJob)
				r.Get("/results", s.getJobResults)
				r.Get("/export", s.exportJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitJobRequest struct {
	URLs           []string               `json:"urls"`
	CheckOptions   *checker.CheckOptions  `json:"check_options"`
	RuntimeOptions *runtimeOptionsRequest `json:"runtime_options"`
}

type runtimeOptionsRequest struct {
	TimeoutSeconds *int `json:"timeout_seconds"`
	Retries        *int `json:"retries"`
	Concurrency    *int `json:"concurrency"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one URL required")
		return
	}

	opts := checker.DefaultCheckOptions()
	if req.CheckOptions != nil {
		opts = *req.CheckOptions
	}

	runtime := s.cfg.RuntimeDefaults()
	if req.RuntimeOptions != nil {
		if req.RuntimeOptions.TimeoutSeconds != nil {
			runtime.TimeoutSeconds = *req.RuntimeOptions.TimeoutSeconds
		}
		if req.RuntimeOptions.Retries != nil {
			runtime.Retries = *req.RuntimeOptions.Retries
		}
		if req.RuntimeOptions.Concurrency != nil {
			runtime.Concurrency = *req.RuntimeOptions.Concurrency
		}
	}
	runtime = runtime.Clamp()

	j := s.manager.Create(req.URLs, opts, runtime)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	j := s.manager.Get(chi.URLParam(r, "job_id"))
	if j == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.StatusSnapshot(j))
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if !s.manager.Stop(jobID) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "stop requested"})
}

func (s *Server) getJobResults(w http.ResponseWriter, r *http.Request) {
	rows := s.manager.Results(chi.URLParam(r, "job_id"))
	if rows == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) exportJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	j := s.manager.Get(jobID)
	if j == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	rows := s.manager.Results(jobID)
	schema := export.UnionSchema(j.Options(), rows)

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	switch format {
	case "csv":
		data, err := export.RowsToCSV(schema, rows)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
		_, _ = w.Write(data)
	case "xlsx":
		data, err := export.RowsToXLSX(schema, rows)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
		_, _ = w.Write(data)
	default:
		s.writeError(w, http.StatusBadRequest, "unsupported format")
	}
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.GetStats())
}

type heartbeatRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}
	s.manager.Heartbeat(req.SessionID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveAPIRequest(r.Method, r.URL.Path, time.Since(start))
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
