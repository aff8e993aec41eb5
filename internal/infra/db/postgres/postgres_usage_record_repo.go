package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.UsageRecordRepository = (*usageRecordRepo)(nil)

const usageRecordColumns = `
id, access_code_id, redeemer_identity, used_at, session_started_at,
session_ended_at, session_duration_minutes`

type usageRecordRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRecordRepo(pool *pgxpool.Pool) repository.UsageRecordRepository {
	return &usageRecordRepo{pool: pool}
}

func (r *usageRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.UsageRecord) error {
	const q = `
INSERT INTO usage_records (` + usageRecordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.AccessCodeID, rec.RedeemerIdentity, rec.UsedAt,
		rec.SessionStartedAt, rec.SessionEndedAt, rec.SessionDurationMinutes,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *usageRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UsageRecord, error) {
	const q = `
SELECT ` + usageRecordColumns + `
  FROM usage_records
 WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUsageRecord(row)
}

func (r *usageRecordRepo) ListByCode(ctx context.Context, tx repository.Tx, accessCodeID string) ([]*model.UsageRecord, error) {
	// ULID ids sort by creation time, so ordering by id is oldest-first.
	const q = `
SELECT ` + usageRecordColumns + `
  FROM usage_records
 WHERE access_code_id = $1
 ORDER BY id ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, accessCodeID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.UsageRecord
	for rows.Next() {
		rec, err := scanUsageRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// CloseSession writes the end boundary exactly once. The `session_ended_at
// IS NULL` guard makes double-close detection race-free: of two concurrent
// closes, one matches the row and one does not.
func (r *usageRecordRepo) CloseSession(ctx context.Context, tx repository.Tx, id string, endedAt time.Time, durationMinutes int) error {
	const q = `
UPDATE usage_records
   SET session_ended_at = $2,
       session_duration_minutes = $3
 WHERE id = $1
   AND session_ended_at IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, endedAt, durationMinutes)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *usageRecordRepo) StatsByCode(ctx context.Context, tx repository.Tx, accessCodeID string) (*model.UsageStats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE session_ended_at IS NULL),
       COUNT(*) FILTER (WHERE session_ended_at IS NOT NULL),
       COALESCE(AVG(session_duration_minutes), 0)
  FROM usage_records
 WHERE access_code_id = $1;`
	return r.queryStats(ctx, tx, q, accessCodeID)
}

func (r *usageRecordRepo) StatsByPartner(ctx context.Context, tx repository.Tx, partnerID string) (*model.UsageStats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE u.session_ended_at IS NULL),
       COUNT(*) FILTER (WHERE u.session_ended_at IS NOT NULL),
       COALESCE(AVG(u.session_duration_minutes), 0)
  FROM usage_records u
  JOIN access_codes c ON c.id = u.access_code_id
 WHERE c.partner_id = $1;`
	return r.queryStats(ctx, tx, q, partnerID)
}

// Stats are aggregated on read so they can never drift from the ledger.
// AVG ignores NULL durations, so open sessions do not skew the mean, and
// COALESCE pins the no-completed-sessions case to 0.
func (r *usageRecordRepo) queryStats(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.UsageStats, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var s model.UsageStats
	if err := row.Scan(&s.TotalUsages, &s.ActiveSessions, &s.CompletedSessions, &s.AverageDuration); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func scanUsageRecord(row pgx.Row) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	err := row.Scan(
		&rec.ID, &rec.AccessCodeID, &rec.RedeemerIdentity, &rec.UsedAt,
		&rec.SessionStartedAt, &rec.SessionEndedAt, &rec.SessionDurationMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &rec, nil
}
