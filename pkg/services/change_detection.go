// Package services contains the scan pipeline: structured extraction,
// change detection, diff synthesis, and the orchestration around them.
package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
)

// ChangeDetector compares consecutive structured summaries and, when they
// differ meaningfully, synthesizes the diff patch between them.
type ChangeDetector interface {
	// Detect reports whether current differs meaningfully from previous.
	// Both empty compares false; exactly one empty is always a change.
	Detect(previous, current *models.StructuredSummary) bool

	// Synthesize builds the diff patch between two summaries. Pure; applies
	// the same single-field comparison Detect uses.
	Synthesize(previous, current *models.StructuredSummary) *models.DiffPatch
}

type changeDetector struct {
	summaryThreshold float64
	listThreshold    float64
	logger           *zap.Logger
}

// NewChangeDetector creates a detector with thresholds from configuration.
func NewChangeDetector(cfg *config.DetectorConfig, logger *zap.Logger) ChangeDetector {
	return &changeDetector{
		summaryThreshold: cfg.SummaryThreshold,
		listThreshold:    cfg.ListThreshold,
		logger:           logger.Named("detector"),
	}
}

var _ ChangeDetector = (*changeDetector)(nil)

// comparedField pairs one critical field's values from both summaries with
// the threshold that applies to it.
type comparedField struct {
	name      string
	oldValue  any
	newValue  any
	threshold float64
}

// criticalFields lists the fields compared between revisions, in comparison
// order. Cosmetic fields (markdown rendering, confidence, recommendation)
// are deliberately absent; drift there alone is not a change.
func (d *changeDetector) criticalFields(previous, current *models.StructuredSummary) []comparedField {
	return []comparedField{
		{"summary", previous.Summary, current.Summary, d.summaryThreshold},
		{"changes_detected", previous.ChangesDetected, current.ChangesDetected, d.summaryThreshold},
		{"risk_level", previous.RiskLevel, current.RiskLevel, d.summaryThreshold},
		{"key_points", previous.KeyPoints, current.KeyPoints, d.listThreshold},
	}
}

// Detect reports whether current differs meaningfully from previous.
// Comparison short-circuits on the first changed critical field.
func (d *changeDetector) Detect(previous, current *models.StructuredSummary) bool {
	prevEmpty := previous.IsEmpty()
	currEmpty := current.IsEmpty()
	if prevEmpty && currEmpty {
		return false
	}
	if prevEmpty || currEmpty {
		return true
	}

	for _, f := range d.criticalFields(previous, current) {
		if d.fieldChanged(f.name, f.oldValue, f.newValue, f.threshold) {
			d.logger.Debug("change detected", zap.String("field", f.name))
			return true
		}
	}
	return false
}

// fieldChanged compares one field across two summaries. Strings and string
// lists tolerate wording drift up to the similarity threshold; everything
// else compares exact.
func (d *changeDetector) fieldChanged(name string, old, new any, threshold float64) bool {
	if old == nil && new == nil {
		return false
	}
	if old == nil || new == nil {
		return true
	}

	switch oldVal := old.(type) {
	case string:
		newVal, ok := new.(string)
		if !ok {
			d.warnTypeMismatch(name, old, new)
			return true
		}
		return stringChanged(oldVal, newVal, threshold)
	case []string:
		newVal, ok := new.([]string)
		if !ok {
			d.warnTypeMismatch(name, old, new)
			return true
		}
		// Lists compare as their space-joined text, so reordering or
		// rewording within the tolerance is not a change.
		return stringChanged(strings.Join(oldVal, " "), strings.Join(newVal, " "), threshold)
	default:
		if fmt.Sprintf("%T", old) != fmt.Sprintf("%T", new) {
			d.warnTypeMismatch(name, old, new)
			return true
		}
		return old != new
	}
}

// warnTypeMismatch logs a comparison ambiguity. Differing runtime types
// count as a change so extractor schema drift is never silently ignored.
func (d *changeDetector) warnTypeMismatch(field string, old, new any) {
	d.logger.Warn("comparison ambiguity: field types differ between revisions",
		zap.String("field", field),
		zap.String("previous_type", fmt.Sprintf("%T", old)),
		zap.String("current_type", fmt.Sprintf("%T", new)))
}

// stringChanged compares two strings: identical after trimming is never a
// change, one side going empty always is, and otherwise word-set similarity
// below the threshold decides.
func stringChanged(old, new string, threshold float64) bool {
	oldTrimmed := strings.TrimSpace(old)
	newTrimmed := strings.TrimSpace(new)
	if oldTrimmed == newTrimmed {
		return false
	}
	if oldTrimmed == "" || newTrimmed == "" {
		return true
	}
	return jaccardSimilarity(oldTrimmed, newTrimmed) < threshold
}

// jaccardSimilarity computes case-insensitive word-set overlap between two
// strings: |intersection| / |union|.
func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
