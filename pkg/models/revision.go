package models

import (
	"time"

	"github.com/google/uuid"
)

// RevisionStatus represents the processing status of a revision.
type RevisionStatus string

const (
	RevisionStatusPending    RevisionStatus = "pending"
	RevisionStatusProcessing RevisionStatus = "processing"
	RevisionStatusProcessed  RevisionStatus = "processed"
	RevisionStatusFailed     RevisionStatus = "failed"
)

// ValidRevisionStatuses contains all valid status values.
var ValidRevisionStatuses = []RevisionStatus{
	RevisionStatusPending,
	RevisionStatusProcessing,
	RevisionStatusProcessed,
	RevisionStatusFailed,
}

// IsValidRevisionStatus checks if the given status is valid.
func IsValidRevisionStatus(s RevisionStatus) bool {
	for _, v := range ValidRevisionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Risk level values produced by the extractor.
const (
	RiskLevelLow    = "Low"
	RiskLevelMedium = "Medium"
	RiskLevelHigh   = "High"
)

// StructuredSummary is the extractor's validated output for one revision:
// the free-text summary, the machine-usable facts, and the assessment
// fields downstream consumers alert on.
type StructuredSummary struct {
	Summary         string         `json:"summary"`
	MarkdownSummary string         `json:"markdown_summary"`
	ConfidenceScore float64        `json:"confidence_score"`
	ExtractedData   map[string]any `json:"extracted_data,omitempty"`
	KeyPoints       []string       `json:"key_points,omitempty"`
	ChangesDetected string         `json:"changes_detected,omitempty"`
	RiskLevel       string         `json:"risk_level,omitempty"`
	Recommendation  string         `json:"recommendation,omitempty"`
}

// IsEmpty reports whether the summary carries no comparable content.
func (s *StructuredSummary) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.Summary == "" && len(s.KeyPoints) == 0 &&
		s.ChangesDetected == "" && s.RiskLevel == ""
}

// Revision is one fetch-and-analyze attempt's persisted record for a source.
// Revisions are append-only: once the change-detection step completes, the
// row is never mutated apart from soft deletion.
type Revision struct {
	ID                uuid.UUID          `json:"id"`
	SourceID          uuid.UUID          `json:"source_id"`
	FetchedAt         time.Time          `json:"fetched_at"`
	Status            RevisionStatus     `json:"status"`
	RawContent        *string            `json:"raw_content,omitempty"`
	ContentLocation   *string            `json:"content_location,omitempty"`
	ExtractedData     map[string]any     `json:"extracted_data,omitempty"`
	StructuredSummary *StructuredSummary `json:"structured_summary,omitempty"`
	ChangeDetected    *bool              `json:"change_detected,omitempty"`
	// Seq is a monotonic insert sequence assigned by the database. It breaks
	// ordering ties between revisions created within the same timestamp.
	Seq       int64      `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
