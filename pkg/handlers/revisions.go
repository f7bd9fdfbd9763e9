package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/repositories"
)

const (
	defaultRevisionPageSize = 20
	maxRevisionPageSize     = 100
)

// RevisionSummaryResponse is a single revision in a history listing. Raw
// content stays out of listings; it is archived separately.
type RevisionSummaryResponse struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	FetchedAt       time.Time `json:"fetched_at"`
	Status          string    `json:"status"`
	ChangeDetected  *bool     `json:"change_detected,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	RiskLevel       string    `json:"risk_level,omitempty"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	Seq             int64     `json:"seq"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListRevisionsResponse wraps a page of revision history.
type ListRevisionsResponse struct {
	Revisions []RevisionSummaryResponse `json:"revisions"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

// RevisionsHandler handles revision history and diff lookups.
type RevisionsHandler struct {
	sourceRepo   repositories.SourceRepository
	revisionRepo repositories.RevisionRepository
	diffRepo     repositories.ChangeDiffRepository
	logger       *zap.Logger
}

// NewRevisionsHandler creates a new revisions handler.
func NewRevisionsHandler(
	sourceRepo repositories.SourceRepository,
	revisionRepo repositories.RevisionRepository,
	diffRepo repositories.ChangeDiffRepository,
	logger *zap.Logger,
) *RevisionsHandler {
	return &RevisionsHandler{
		sourceRepo:   sourceRepo,
		revisionRepo: revisionRepo,
		diffRepo:     diffRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers the revisions handler's routes on the given mux.
func (h *RevisionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sources/{id}/revisions", h.ListBySource)
	mux.HandleFunc("GET /api/v1/revisions/{id}/diff", h.GetDiff)
}

// ListBySource handles GET /api/v1/sources/{id}/revisions
// Returns the revision history for a source, newest first.
// Query parameters: limit (default 20, max 100), offset (default 0).
func (h *RevisionsHandler) ListBySource(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := ParseSourceID(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	if _, err := h.sourceRepo.Get(r.Context(), sourceID); err != nil {
		if errors.Is(err, apperrors.ErrSourceNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Source not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to load source",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load source"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	revisions, err := h.revisionRepo.ListBySource(r.Context(), sourceID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list revisions",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list revisions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ListRevisionsResponse{
		Revisions: make([]RevisionSummaryResponse, 0, len(revisions)),
		Limit:     limit,
		Offset:    offset,
	}
	for _, rev := range revisions {
		response.Revisions = append(response.Revisions, buildRevisionSummary(rev))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetDiff handles GET /api/v1/revisions/{id}/diff
// Returns the diff recorded against the given revision, or 404 when the
// revision is a baseline or unchanged.
func (h *RevisionsHandler) GetDiff(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := ParseRevisionID(w, r, h.logger)
	if !ok {
		return
	}

	if _, err := h.revisionRepo.GetByID(r.Context(), revisionID); err != nil {
		if errors.Is(err, apperrors.ErrRevisionNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Revision not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to load revision",
			zap.String("revision_id", revisionID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load revision"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	diff, err := h.diffRepo.GetByNewRevision(r.Context(), revisionID)
	if err != nil {
		h.logger.Error("Failed to load diff",
			zap.String("revision_id", revisionID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load diff"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if diff == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "diff_not_found", "No diff recorded for this revision"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, diff); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parsePagination reads limit and offset query parameters, applying the
// defaults and the page size cap.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultRevisionPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxRevisionPageSize {
		limit = maxRevisionPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// buildRevisionSummary creates a RevisionSummaryResponse from a Revision.
func buildRevisionSummary(rev *models.Revision) RevisionSummaryResponse {
	resp := RevisionSummaryResponse{
		ID:             rev.ID.String(),
		SourceID:       rev.SourceID.String(),
		FetchedAt:      rev.FetchedAt,
		Status:         string(rev.Status),
		ChangeDetected: rev.ChangeDetected,
		Seq:            rev.Seq,
		CreatedAt:      rev.CreatedAt,
	}
	if rev.StructuredSummary != nil {
		resp.Summary = rev.StructuredSummary.Summary
		resp.RiskLevel = rev.StructuredSummary.RiskLevel
		score := rev.StructuredSummary.ConfidenceScore
		resp.ConfidenceScore = &score
	}
	return resp
}
