package models

import "time"

// UsageEvent tells the foreground process that a reward app was used.
// The monitor writes one record per sample; the foreground claims it by
// deleting the key before applying it.
type UsageEvent struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"token_hash"`
	LogicalID  string    `json:"logical_id"`
	Seconds    int       `json:"seconds"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
}

// UsageSample is one foreground-time delta reported by the sampling
// collaborator. DisplayName is optional and lets a reissued handle be
// matched to its configured app.
type UsageSample struct {
	Handle      AppHandle `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	Seconds     int       `json:"seconds"`
	At          time.Time `json:"at"`
}

// UsageCounter is a running total of foreground seconds written by the
// OS-level agent for one handle.
type UsageCounter struct {
	Handle      AppHandle `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	Seconds     int       `json:"seconds"`
	UpdatedAt   time.Time `json:"updated_at"`
}
