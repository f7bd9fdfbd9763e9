// Package models contains domain types for lexwatch-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan interval values for scheduled runs.
const (
	ScanIntervalHourly = "hourly"
	ScanIntervalDaily  = "daily"
	ScanIntervalWeekly = "weekly"
)

// ScanIntervalDuration maps a scan interval to the minimum gap between
// scheduled runs. Unknown values fall back to daily.
func ScanIntervalDuration(interval string) time.Duration {
	switch interval {
	case ScanIntervalHourly:
		return time.Hour
	case ScanIntervalWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// IsValidScanInterval reports whether interval is a supported scan cadence.
// The empty string is accepted and defaults to daily on insert.
func IsValidScanInterval(interval string) bool {
	switch interval {
	case "", ScanIntervalHourly, ScanIntervalDaily, ScanIntervalWeekly:
		return true
	}
	return false
}

// Source represents a monitored regulatory endpoint. The pipeline owns no
// more of it than it needs to run a scan: where to fetch, what instructions
// to hand the extractor, and whether the source participates in scheduled
// runs.
type Source struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	URL                string            `json:"url"`
	Jurisdiction       string            `json:"jurisdiction,omitempty"`
	ProjectPrompt      string            `json:"project_prompt"`
	JurisdictionPrompt string            `json:"jurisdiction_prompt,omitempty"`
	AuthCredentials    map[string]string `json:"auth_credentials,omitempty"`
	ScanInterval       string            `json:"scan_interval"`
	Enabled            bool              `json:"enabled"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}
