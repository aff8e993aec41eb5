package model

import (
	"time"

	"elearning-partner-access/internal/domain"
)

// CodeStatus is derived from the stored fields and the current time.
// It is never persisted; see Status.
type CodeStatus string

const (
	CodeStatusActive    CodeStatus = "active"
	CodeStatusInactive  CodeStatus = "inactive"
	CodeStatusExpired   CodeStatus = "expired"
	CodeStatusExhausted CodeStatus = "exhausted"
)

// AccessCode is a time-bounded, usage-limited token issued by a partner.
// Each successful redemption consumes one use and opens a usage session of
// ActivityDurationMinutes.
type AccessCode struct {
	ID                      string
	Code                    string // immutable after creation, unique
	PartnerID               string
	ModuleID                *string // nil means the code unlocks all modules
	Name                    string
	Description             string
	CreatedAt               time.Time
	ExpiresAt               time.Time
	ActivityDurationMinutes int
	MaxUses                 int
	CurrentUses             int
	IsActive                bool
}

// NewAccessCode validates the input and builds a fresh code record.
// The code string itself is assigned by the generator, not here.
func NewAccessCode(partnerID string, moduleID *string, name, description string, expiresAt time.Time, activityDurationMinutes, maxUses int, now time.Time) (*AccessCode, error) {
	if partnerID == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !expiresAt.After(now) {
		return nil, domain.ErrInvalidArgument
	}
	if activityDurationMinutes < 1 || maxUses < 1 {
		return nil, domain.ErrInvalidArgument
	}
	return &AccessCode{
		PartnerID:               partnerID,
		ModuleID:                moduleID,
		Name:                    name,
		Description:             description,
		CreatedAt:               now,
		ExpiresAt:               expiresAt,
		ActivityDurationMinutes: activityDurationMinutes,
		MaxUses:                 maxUses,
		CurrentUses:             0,
		IsActive:                true,
	}, nil
}

// Status computes the derived status at the given instant.
//
// Precedence matters: a deactivated code reports inactive even when it is
// also expired or exhausted, because deactivation is the most specific,
// intentional signal. The redemption path re-derives eligibility against the
// stored row inside its own atomic guard; this projection is advisory for
// display.
func (c *AccessCode) Status(now time.Time) CodeStatus {
	switch {
	case !c.IsActive:
		return CodeStatusInactive
	case !now.Before(c.ExpiresAt):
		return CodeStatusExpired
	case c.CurrentUses >= c.MaxUses:
		return CodeStatusExhausted
	default:
		return CodeStatusActive
	}
}

// EligibilityError maps an ineligible status to its redemption error.
// Returns nil for an active code.
func (c *AccessCode) EligibilityError(now time.Time) error {
	switch c.Status(now) {
	case CodeStatusInactive:
		return domain.ErrCodeInactive
	case CodeStatusExpired:
		return domain.ErrCodeExpired
	case CodeStatusExhausted:
		return domain.ErrCodeExhausted
	}
	return nil
}

// SessionDeadline is the instant a session opened at `start` stops granting
// access. Enforcing it is the consumer's policy, not this subsystem's.
func (c *AccessCode) SessionDeadline(start time.Time) time.Time {
	return start.Add(time.Duration(c.ActivityDurationMinutes) * time.Minute)
}
