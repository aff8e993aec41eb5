package model

import (
	"time"
)

// UsageRecord is one ledger entry per successful redemption. Append-only:
// the only mutation ever applied is the one-time session close.
type UsageRecord struct {
	ID                     string
	AccessCodeID           string
	RedeemerIdentity       string // opaque to this subsystem (IP, user id, ...)
	UsedAt                 time.Time
	SessionStartedAt       time.Time
	SessionEndedAt         *time.Time
	SessionDurationMinutes *int
}

// IsClosed reports whether the session has been explicitly closed.
func (u *UsageRecord) IsClosed() bool {
	return u.SessionEndedAt != nil
}

// SessionMinutes computes the session length in whole minutes, rounded to
// the nearest minute with halves away from zero (90s -> 2). Negative spans
// clamp to zero rather than producing a negative duration.
func SessionMinutes(startedAt, endedAt time.Time) int {
	d := endedAt.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d.Round(time.Minute) / time.Minute)
}

// UsageStats are derived views over the ledger, computed on read rather than
// maintained as running counters so they can never drift from the records.
type UsageStats struct {
	TotalUsages       int     `json:"total_usages"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	AverageDuration   float64 `json:"average_duration"`
}
