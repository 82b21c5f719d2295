package models

import "time"

// RunSnapshot is a derived, read-only view of one run computed fresh on every
// poll from the current SlotState plus the progress estimator. It is never
// cached as a source of truth.
type RunSnapshot struct {
	RunID          string     `json:"run_id"`
	SlotID         string     `json:"slot_id,omitempty"`
	Name           string     `json:"name,omitempty"`
	Status         RunStatus  `json:"status"`
	ProgressPct    float64    `json:"progress_pct"`
	RemainingS     *float64   `json:"remaining_s"` // nil when any remaining mode is unestimable
	CurrentMode    string     `json:"current_mode,omitempty"`
	RemainingModes []string   `json:"remaining_modes"`
	LastError      string     `json:"last_error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	NotFound       bool       `json:"not_found,omitempty"` // Per-item soft failure in bulk polls
}

// NewNotFoundSnapshot returns the typed "not found" entry used in bulk poll
// responses so a caller mixing valid and stale ids degrades gracefully.
func NewNotFoundSnapshot(runID string) RunSnapshot {
	return RunSnapshot{
		RunID:    runID,
		NotFound: true,
	}
}
