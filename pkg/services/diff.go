package services

import (
	"github.com/lexwatch/lexwatch-engine/pkg/models"
)

// summaryPreviewLength is how many characters of each side's summary a diff
// patch carries for reviewer orientation.
const summaryPreviewLength = 200

// Synthesize builds the structured diff patch between two summaries: the
// per-field old/new values, the change totals, and a truncated preview of
// each side. Pure function, no I/O. A nil side compares as empty.
func (d *changeDetector) Synthesize(previous, current *models.StructuredSummary) *models.DiffPatch {
	if previous == nil {
		previous = &models.StructuredSummary{}
	}
	if current == nil {
		current = &models.StructuredSummary{}
	}

	fieldChanges := make(map[string]models.FieldChange)
	fieldsChanged := make([]string, 0)

	for _, f := range d.criticalFields(previous, current) {
		if d.fieldChanged(f.name, f.oldValue, f.newValue, f.threshold) {
			fieldChanges[f.name] = models.FieldChange{
				OldValue:   f.oldValue,
				NewValue:   f.newValue,
				ChangeType: models.FieldChangeTypeModified,
			}
			fieldsChanged = append(fieldsChanged, f.name)
		}
	}

	return &models.DiffPatch{
		FieldChanges: fieldChanges,
		ChangeSummary: models.ChangeSummary{
			FieldsChanged: fieldsChanged,
			TotalChanges:  len(fieldsChanged),
		},
		OldPreview: summaryPreview(previous),
		NewPreview: summaryPreview(current),
	}
}

// summaryPreview reduces one side of a diff to orientation size.
func summaryPreview(s *models.StructuredSummary) models.SummaryPreview {
	return models.SummaryPreview{
		Summary:        truncateString(s.Summary, summaryPreviewLength),
		RiskLevel:      s.RiskLevel,
		KeyPointsCount: len(s.KeyPoints),
	}
}

// truncateString shortens s to maxLen characters, marking the cut.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
