package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"detcover/internal/engine"
	"detcover/internal/logger"
)

// Server exposes the analysis engine over HTTP.
type Server struct {
	r      *chi.Mux
	engine *engine.Engine
}

// NewServer builds the router.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{r: chi.NewRouter(), engine: eng}

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	s.r.Handle("/metrics", promhttp.Handler())

	s.r.Post("/operations/{operation_id}/analyze", s.analyzeOperation)
	s.r.Get("/operations/{operation_id}/coverage", s.getTechniqueCoverage)
	s.r.Delete("/operations/{operation_id}/report", s.evictReport)
	s.r.Get("/sources/status", s.getSourceStatus)
	s.r.Post("/simulate", s.simulate)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) analyzeOperation(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operation_id")

	timeframe := 0
	if raw := r.URL.Query().Get("timeframe_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "timeframe_hours must be a non-negative integer", operationID)
			return
		}
		timeframe = parsed
	}

	report, err := s.engine.AnalyzeOperation(r.Context(), operationID, timeframe)
	if err != nil {
		s.writeEngineError(w, err, operationID)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getTechniqueCoverage(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operation_id")

	coverage, err := s.engine.TechniqueCoverage(r.Context(), operationID)
	if err != nil {
		s.writeEngineError(w, err, operationID)
		return
	}
	writeJSON(w, http.StatusOK, coverage)
}

func (s *Server) evictReport(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operation_id")

	removed, err := s.engine.EvictReport(r.Context(), operationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), operationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operation_id": operationID, "evicted": removed})
}

func (s *Server) getSourceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SourceStatus(r.Context()))
}

type simulateRequest struct {
	TechniqueIDs   []string `json:"technique_ids"`
	TimeframeHours int      `json:"timeframe_hours"`
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if len(req.TechniqueIDs) == 0 {
		writeError(w, http.StatusBadRequest, "technique_ids is required", "")
		return
	}

	result, err := s.engine.Simulate(r.Context(), req.TechniqueIDs, req.TimeframeHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error, operationID string) {
	if errors.Is(err, engine.ErrOperationNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), operationID)
		return
	}
	logger.Errorf("Request for operation %s failed: %v", operationID, err)
	writeError(w, http.StatusInternalServerError, err.Error(), operationID)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message, operationID string) {
	body := map[string]string{"error": message}
	if operationID != "" {
		body["operation_id"] = operationID
	}
	writeJSON(w, code, body)
}
