package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
	"elearning-partner-access/internal/infra/metrics"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// RedemptionUseCase is the state machine consuming access codes. Redeem and
// CloseSession take the caller's clock so the eligibility decision, the
// ledger entry and the returned deadline all agree on one instant.
type RedemptionUseCase interface {
	// Redeem consumes one use of the code and opens a session. Returns the
	// new ledger entry and the session deadline.
	Redeem(ctx context.Context, codeString, redeemerIdentity string, now time.Time) (*model.UsageRecord, time.Time, error)
	// CloseSession ends an open session exactly once.
	CloseSession(ctx context.Context, usageRecordID string, endedAt time.Time) (*model.UsageRecord, error)
}

type redemptionUC struct {
	codes   repository.AccessCodeRepository
	records repository.UsageRecordRepository
	txm     repository.TransactionManager

	log *zerolog.Logger
}

func NewRedemptionUseCase(codes repository.AccessCodeRepository, records repository.UsageRecordRepository, txm repository.TransactionManager, logger *zerolog.Logger) *redemptionUC {
	l := logger.With().Str("component", "RedemptionUC").Logger()
	return &redemptionUC{codes: codes, records: records, txm: txm, log: &l}
}

// Redeem validates and consumes one use of the code.
//
// The use counter moves via a single conditional UPDATE guarded by
// `is_active AND expires_at > now AND current_uses < max_uses`, and the
// ledger append happens in the same transaction. Two concurrent redemptions
// racing for the last slot therefore resolve deterministically: one wins,
// the other sees no matching row and reports the exhausted error. A plain
// read-then-write here would over-issue sessions.
func (uc *redemptionUC) Redeem(ctx context.Context, codeString, redeemerIdentity string, now time.Time) (*model.UsageRecord, time.Time, error) {
	code, err := uc.codes.FindByCode(ctx, repository.NoTX, codeString)
	if err != nil {
		metrics.IncRedemption("not_found")
		return nil, time.Time{}, err
	}

	var rec *model.UsageRecord
	err = uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		uses, err := uc.codes.ConsumeUse(ctx, tx, code.ID, now)
		if err != nil {
			return err
		}
		code.CurrentUses = uses

		rec = &model.UsageRecord{
			ID:               ulid.Make().String(),
			AccessCodeID:     code.ID,
			RedeemerIdentity: redeemerIdentity,
			UsedAt:           now,
			SessionStartedAt: now,
		}
		return uc.records.Save(ctx, tx, rec)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, time.Time{}, uc.diagnoseIneligible(ctx, codeString, now)
		}
		metrics.IncRedemption("error")
		return nil, time.Time{}, err
	}

	deadline := code.SessionDeadline(now)
	metrics.IncRedemption("success")
	uc.log.Info().
		Str("code_id", code.ID).
		Str("usage_id", rec.ID).
		Int("current_uses", code.CurrentUses).
		Time("deadline", deadline).
		Msg("code redeemed")
	return rec, deadline, nil
}

// diagnoseIneligible names the rule that blocked a failed ConsumeUse. The
// guard and this re-read share the same `now`, and current_uses only grows,
// so the one transient cause of a guard miss is the last slot being taken.
func (uc *redemptionUC) diagnoseIneligible(ctx context.Context, codeString string, now time.Time) error {
	code, err := uc.codes.FindByCode(ctx, repository.NoTX, codeString)
	if err != nil {
		// Deleted between the guard and the re-read.
		metrics.IncRedemption("not_found")
		return err
	}
	if e := code.EligibilityError(now); e != nil {
		metrics.IncRedemption(string(code.Status(now)))
		return e
	}
	metrics.IncRedemption(string(model.CodeStatusExhausted))
	return domain.ErrCodeExhausted
}

// CloseSession sets the end boundary of a session exactly once. The update
// is conditioned on `session_ended_at IS NULL`, so a double close loses the
// race at the store and surfaces as ErrSessionClosed rather than silently
// overwriting the recorded duration.
//
// Sessions that are never closed stay open from this subsystem's point of
// view; expiring them against activity_duration_minutes is the access
// consumer's policy, not enforced here.
func (uc *redemptionUC) CloseSession(ctx context.Context, usageRecordID string, endedAt time.Time) (*model.UsageRecord, error) {
	rec, err := uc.records.FindByID(ctx, repository.NoTX, usageRecordID)
	if err != nil {
		return nil, err
	}
	if rec.IsClosed() {
		return nil, domain.ErrSessionClosed
	}

	minutes := model.SessionMinutes(rec.SessionStartedAt, endedAt)
	if err := uc.records.CloseSession(ctx, repository.NoTX, usageRecordID, endedAt, minutes); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The record existed a moment ago, so a concurrent close won.
			return nil, domain.ErrSessionClosed
		}
		return nil, err
	}

	rec.SessionEndedAt = &endedAt
	rec.SessionDurationMinutes = &minutes
	metrics.ObserveSessionDuration(minutes)
	uc.log.Info().
		Str("usage_id", rec.ID).
		Int("duration_minutes", minutes).
		Msg("session closed")
	return rec, nil
}
