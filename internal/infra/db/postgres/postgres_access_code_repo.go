package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessCodeRepository = (*accessCodeRepo)(nil)

const accessCodeColumns = `
id, code, partner_id, module_id, name, description, created_at, expires_at,
activity_duration_minutes, max_uses, current_uses, is_active`

type accessCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepo(pool *pgxpool.Pool) repository.AccessCodeRepository {
	return &accessCodeRepo{pool: pool}
}

func (r *accessCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	const q = `
INSERT INTO access_codes (` + accessCodeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Code, code.PartnerID, code.ModuleID, code.Name, code.Description,
		code.CreatedAt, code.ExpiresAt, code.ActivityDurationMinutes,
		code.MaxUses, code.CurrentUses, code.IsActive,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *accessCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	const q = `
SELECT ` + accessCodeColumns + `
  FROM access_codes
 WHERE id = $1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	const q = `
SELECT ` + accessCodeColumns + `
  FROM access_codes
 WHERE code = $1;`
	return r.queryOne(ctx, tx, q, code)
}

// Update persists the admin-mutable fields. current_uses is deliberately
// absent: only ConsumeUse may move the counter.
func (r *accessCodeRepo) Update(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	const q = `
UPDATE access_codes
   SET name = $2,
       description = $3,
       expires_at = $4,
       activity_duration_minutes = $5,
       max_uses = $6,
       is_active = $7
 WHERE id = $1;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Name, code.Description, code.ExpiresAt,
		code.ActivityDurationMinutes, code.MaxUses, code.IsActive,
	)
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

func (r *accessCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	// usage_records go with it via ON DELETE CASCADE
	const q = `DELETE FROM access_codes WHERE id = $1;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id)
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

func (r *accessCodeRepo) List(ctx context.Context, tx repository.Tx, filter repository.ListFilter) ([]*model.AccessCode, error) {
	q := `
SELECT ` + accessCodeColumns + `
  FROM access_codes
 WHERE ($1 = '' OR partner_id = $1)
   AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%' OR code ILIKE '%' || $2 || '%')
 ORDER BY created_at DESC
 OFFSET $3`
	args := []interface{}{filter.PartnerID, filter.Search, filter.Offset}
	if filter.Limit > 0 {
		q += ` LIMIT $4`
		args = append(args, filter.Limit)
	}
	q += `;`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AccessCode
	for rows.Next() {
		c, err := scanAccessCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// ConsumeUse is the single write that moves current_uses. The WHERE clause
// carries the whole eligibility check, so under concurrent redemptions the
// row either matches and increments exactly once, or does not match at all.
// Exactly max_uses increments can ever succeed for one code.
func (r *accessCodeRepo) ConsumeUse(ctx context.Context, tx repository.Tx, id string, now time.Time) (int, error) {
	const q = `
UPDATE access_codes
   SET current_uses = current_uses + 1
 WHERE id = $1
   AND is_active
   AND expires_at > $2
   AND current_uses < max_uses
RETURNING current_uses;`

	row, err := pickRow(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return 0, err
	}
	var uses int
	if err := row.Scan(&uses); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return uses, nil
}

func (r *accessCodeRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.AccessCode, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanAccessCode(row)
}

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	var c model.AccessCode
	err := row.Scan(
		&c.ID, &c.Code, &c.PartnerID, &c.ModuleID, &c.Name, &c.Description,
		&c.CreatedAt, &c.ExpiresAt, &c.ActivityDurationMinutes,
		&c.MaxUses, &c.CurrentUses, &c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}
