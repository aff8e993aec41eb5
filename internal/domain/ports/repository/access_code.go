package repository

import (
	"context"
	"time"

	"elearning-partner-access/internal/domain/model"
)

// ListFilter narrows List results. Status filtering happens in the use case
// (the status is derived, not stored); the repository only filters on stored
// fields and paginates.
type ListFilter struct {
	PartnerID string
	Search    string // matches name, description or the code string
	Offset    int
	Limit     int
}

// AccessCodeRepository is the port for the access-code store.
type AccessCodeRepository interface {
	// Save inserts a new code. Returns domain.ErrAlreadyExists when the code
	// string collides with an existing row.
	Save(ctx context.Context, tx Tx, code *model.AccessCode) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccessCode, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.AccessCode, error)
	// Update persists the mutable fields (name, description, expires_at,
	// activity_duration_minutes, max_uses, is_active). It never touches
	// current_uses; only ConsumeUse moves that counter.
	Update(ctx context.Context, tx Tx, code *model.AccessCode) error
	// Delete removes the code and, by cascade, its usage records.
	Delete(ctx context.Context, tx Tx, id string) error
	List(ctx context.Context, tx Tx, filter ListFilter) ([]*model.AccessCode, error)
	// ConsumeUse atomically increments current_uses by one, conditioned on
	// the code still being active, unexpired and under its use limit at the
	// moment of the write. Returns the new current_uses value, or
	// domain.ErrNotFound when no row satisfied the guard; the caller
	// re-reads the row to diagnose which eligibility rule failed.
	ConsumeUse(ctx context.Context, tx Tx, id string, now time.Time) (int, error)
}
