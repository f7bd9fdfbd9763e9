package models

import (
	"testing"
	"time"
)

func TestIsValidScanInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		want     bool
	}{
		{name: "hourly", interval: ScanIntervalHourly, want: true},
		{name: "daily", interval: ScanIntervalDaily, want: true},
		{name: "weekly", interval: ScanIntervalWeekly, want: true},
		{name: "empty defaults to daily", interval: "", want: true},
		{name: "unknown value", interval: "monthly", want: false},
		{name: "case sensitive", interval: "Daily", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidScanInterval(tt.interval); got != tt.want {
				t.Errorf("IsValidScanInterval(%q) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
}

func TestScanIntervalDuration(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		want     time.Duration
	}{
		{name: "hourly", interval: ScanIntervalHourly, want: time.Hour},
		{name: "daily", interval: ScanIntervalDaily, want: 24 * time.Hour},
		{name: "weekly", interval: ScanIntervalWeekly, want: 7 * 24 * time.Hour},
		{name: "unknown falls back to daily", interval: "fortnightly", want: 24 * time.Hour},
		{name: "empty falls back to daily", interval: "", want: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScanIntervalDuration(tt.interval); got != tt.want {
				t.Errorf("ScanIntervalDuration(%q) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
}
