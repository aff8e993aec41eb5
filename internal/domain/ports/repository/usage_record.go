package repository

import (
	"context"
	"time"

	"elearning-partner-access/internal/domain/model"
)

// UsageRecordRepository is the port for the append-only redemption ledger.
type UsageRecordRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.UsageRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UsageRecord, error)
	// ListByCode returns the ledger for one code, oldest first.
	ListByCode(ctx context.Context, tx Tx, accessCodeID string) ([]*model.UsageRecord, error)
	// CloseSession sets session_ended_at and session_duration_minutes,
	// conditioned on the session still being open. Returns
	// domain.ErrNotFound when no open row matched; the caller re-reads the
	// record to tell a missing record from an already-closed one.
	CloseSession(ctx context.Context, tx Tx, id string, endedAt time.Time, durationMinutes int) error
	// StatsByCode aggregates the ledger for one code on read.
	StatsByCode(ctx context.Context, tx Tx, accessCodeID string) (*model.UsageStats, error)
	// StatsByPartner aggregates across every code owned by a partner.
	StatsByPartner(ctx context.Context, tx Tx, partnerID string) (*model.UsageStats, error)
}
