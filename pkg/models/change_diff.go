package models

import (
	"time"

	"github.com/google/uuid"
)

// Change type constants for diff-patch field changes.
const (
	FieldChangeTypeModified = "modified"
)

// FieldChange records old and new values for one changed summary field.
type FieldChange struct {
	OldValue   any    `json:"old_value"`
	NewValue   any    `json:"new_value"`
	ChangeType string `json:"change_type"`
}

// ChangeSummary lists which fields changed and how many.
type ChangeSummary struct {
	FieldsChanged []string `json:"fields_changed"`
	TotalChanges  int      `json:"total_changes"`
}

// SummaryPreview is a truncated view of one side of a diff, enough for a
// reviewer to orient without loading the full revision.
type SummaryPreview struct {
	Summary        string `json:"summary"`
	RiskLevel      string `json:"risk_level"`
	KeyPointsCount int    `json:"key_points_count"`
}

// DiffPatch is the structured record of what changed between two
// consecutive structured summaries.
type DiffPatch struct {
	FieldChanges  map[string]FieldChange `json:"field_changes"`
	ChangeSummary ChangeSummary          `json:"change_summary"`
	OldPreview    SummaryPreview         `json:"old_preview"`
	NewPreview    SummaryPreview         `json:"new_preview"`
}

// ChangeDiff links two revisions of the same source and carries the
// diff-patch between them. Created only when the detector flagged a
// meaningful change and a prior revision existed; immutable afterwards.
type ChangeDiff struct {
	ID            uuid.UUID  `json:"id"`
	NewRevisionID uuid.UUID  `json:"new_revision_id"`
	OldRevisionID uuid.UUID  `json:"old_revision_id"`
	DiffPatch     *DiffPatch `json:"diff_patch"`
	// Confidence is reserved for a future AI-assigned score on the diff
	// itself. Distinct from the extractor's confidence_score.
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
