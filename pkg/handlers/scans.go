package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/services"
)

// RunAllResponse reports the outcome of a full scan sweep.
type RunAllResponse struct {
	Scanned  int      `json:"scanned"`
	Changed  int      `json:"changed"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// ScansHandler handles manual scan triggers.
type ScansHandler struct {
	pipeline services.Pipeline
	logger   *zap.Logger
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(pipeline services.Pipeline, logger *zap.Logger) *ScansHandler {
	return &ScansHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers the scans handler's routes on the given mux.
func (h *ScansHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sources/{id}/scan", h.TriggerSource)
	mux.HandleFunc("POST /api/v1/scans/run", h.RunAll)
}

// TriggerSource handles POST /api/v1/sources/{id}/scan
// Runs the full pipeline for a single source and returns the run outcome.
func (h *ScansHandler) TriggerSource(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := ParseSourceID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.pipeline.ProcessSource(r.Context(), sourceID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSourceNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Source not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrSourceDisabled):
			if err := ErrorResponse(w, http.StatusConflict, "source_disabled", "Source is disabled"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrScanInProgress):
			if err := ErrorResponse(w, http.StatusConflict, "scan_in_progress", "A scan is already running for this source"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Manual scan failed",
				zap.String("source_id", sourceID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "scan_failed", "Scan failed"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RunAll handles POST /api/v1/scans/run
// Runs the pipeline for every enabled source that is due for a scan.
func (h *ScansHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.pipeline.RunAll(r.Context())
	if err != nil {
		h.logger.Error("Scan sweep failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "sweep_failed", "Scan sweep failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := RunAllResponse{
		Scanned: result.Scanned,
		Changed: result.Changed,
		Skipped: result.Skipped,
		Failed:  result.Failed,
	}
	for _, failure := range result.Failures {
		response.Failures = append(response.Failures, failure.Error())
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
