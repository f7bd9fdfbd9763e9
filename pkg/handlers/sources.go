package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/repositories"
)

// CreateSourceRequest is the request body for registering a monitored source.
type CreateSourceRequest struct {
	Name               string            `json:"name"`
	URL                string            `json:"url"`
	Jurisdiction       string            `json:"jurisdiction,omitempty"`
	ProjectPrompt      string            `json:"project_prompt,omitempty"`
	JurisdictionPrompt string            `json:"jurisdiction_prompt,omitempty"`
	AuthCredentials    map[string]string `json:"auth_credentials,omitempty"`
	ScanInterval       string            `json:"scan_interval,omitempty"`
	Enabled            *bool             `json:"enabled,omitempty"`
}

// SourceResponse mirrors a source on the wire. Credentials are never echoed
// back; HasCredentials signals their presence instead.
type SourceResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	URL                string    `json:"url"`
	Jurisdiction       string    `json:"jurisdiction,omitempty"`
	ProjectPrompt      string    `json:"project_prompt,omitempty"`
	JurisdictionPrompt string    `json:"jurisdiction_prompt,omitempty"`
	ScanInterval       string    `json:"scan_interval"`
	Enabled            bool      `json:"enabled"`
	HasCredentials     bool      `json:"has_credentials"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ListSourcesResponse wraps the source collection.
type ListSourcesResponse struct {
	Sources []SourceResponse `json:"sources"`
	Count   int              `json:"count"`
}

// SourcesHandler handles source registration and listing.
type SourcesHandler struct {
	sourceRepo repositories.SourceRepository
	logger     *zap.Logger
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(sourceRepo repositories.SourceRepository, logger *zap.Logger) *SourcesHandler {
	return &SourcesHandler{
		sourceRepo: sourceRepo,
		logger:     logger,
	}
}

// RegisterRoutes registers the sources handler's routes on the given mux.
func (h *SourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sources", h.Create)
	mux.HandleFunc("GET /api/v1/sources", h.List)
}

// Create handles POST /api/v1/sources
// Registers a new source for monitoring.
func (h *SourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if errCode, errMsg := validateCreateSourceRequest(&req); errCode != "" {
		if err := ErrorResponse(w, http.StatusBadRequest, errCode, errMsg); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	source := &models.Source{
		Name:               strings.TrimSpace(req.Name),
		URL:                req.URL,
		Jurisdiction:       req.Jurisdiction,
		ProjectPrompt:      req.ProjectPrompt,
		JurisdictionPrompt: req.JurisdictionPrompt,
		AuthCredentials:    req.AuthCredentials,
		ScanInterval:       req.ScanInterval,
		Enabled:            enabled,
	}

	if err := h.sourceRepo.Create(r.Context(), source); err != nil {
		h.logger.Error("Failed to create source",
			zap.String("name", source.Name),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create source"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, buildSourceResponse(source)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/sources
// Returns all registered sources.
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sourceRepo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list sources"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ListSourcesResponse{
		Sources: make([]SourceResponse, 0, len(sources)),
		Count:   len(sources),
	}
	for _, source := range sources {
		response.Sources = append(response.Sources, buildSourceResponse(source))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// validateCreateSourceRequest returns an error code and message for the first
// invalid field, or empty strings when the request is well formed.
func validateCreateSourceRequest(req *CreateSourceRequest) (string, string) {
	if strings.TrimSpace(req.Name) == "" {
		return "missing_name", "Source name is required"
	}
	if strings.TrimSpace(req.URL) == "" {
		return "missing_url", "Source URL is required"
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "invalid_url", "Source URL must be an absolute http or https URL"
	}
	if !models.IsValidScanInterval(req.ScanInterval) {
		return "invalid_scan_interval", "Scan interval must be one of: hourly, daily, weekly"
	}
	return "", ""
}

// buildSourceResponse creates a SourceResponse from a Source model.
func buildSourceResponse(source *models.Source) SourceResponse {
	return SourceResponse{
		ID:                 source.ID.String(),
		Name:               source.Name,
		URL:                source.URL,
		Jurisdiction:       source.Jurisdiction,
		ProjectPrompt:      source.ProjectPrompt,
		JurisdictionPrompt: source.JurisdictionPrompt,
		ScanInterval:       source.ScanInterval,
		Enabled:            source.Enabled,
		HasCredentials:     len(source.AuthCredentials) > 0,
		CreatedAt:          source.CreatedAt,
		UpdatedAt:          source.UpdatedAt,
	}
}
