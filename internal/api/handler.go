// Package api provides the HTTP handlers and routing for the simulated
// analysis service. It speaks the same wire protocol pkg/gpservice's client
// consumes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"geotask/internal/health"
	"geotask/internal/sim"
	"geotask/pkg/gpservice"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the analysis API
type Handler struct {
	engine *sim.Engine
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(engine *sim.Engine, healthChecker *health.Checker) *Handler {
	return &Handler{
		engine: engine,
		health: healthChecker,
	}
}

// SubmitAnalysis handles POST /v1/analyses
func (h *Handler) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req gpservice.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobID, err := h.engine.Create(req.Mode, req.Inputs)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, gpservice.SubmitResponse{JobID: jobID})
}

// ListAnalyses handles GET /v1/analyses
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	views := h.engine.List()

	resp := gpservice.ListResponse{Analyses: make([]gpservice.StatusResponse, 0, len(views))}
	for _, view := range views {
		resp.Analyses = append(resp.Analyses, gpservice.StatusResponse{
			JobID:     view.ID,
			JobStatus: view.Status,
			Message:   view.Message,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAnalysis handles GET /v1/analyses/{jobId}
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	view, err := h.engine.Status(jobID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, gpservice.StatusResponse{
		JobID:     view.ID,
		JobStatus: view.Status,
		Message:   view.Message,
	})
}

// GetAnalysisResult handles GET /v1/analyses/{jobId}/result
func (h *Handler) GetAnalysisResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	result, err := h.engine.Result(jobID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, gpservice.ResultResponse{
		LayerURL: result.LayerURL,
		Extent:   result.Extent,
	})
}

// CancelAnalysis handles POST /v1/analyses/{jobId}/cancel
func (h *Handler) CancelAnalysis(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.engine.Cancel(jobID); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the engine is closed or the service is shutting down.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// writeJSON writes a JSON response. Middleware shares it so error bodies
// look the same no matter which layer produced them.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, gpservice.ErrorResponse{Error: message})
}

// handleError maps engine errors onto HTTP responses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, err.Error())
}

// httpStatus translates engine sentinels into status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrNotFinished):
		return http.StatusConflict
	case errors.Is(err, sim.ErrInvalidMode), errors.Is(err, sim.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
