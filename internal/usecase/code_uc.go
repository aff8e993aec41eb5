package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
)

// maxGenerateAttempts bounds the retry loop on code-string collisions.
// Hitting the bound signals a generator defect, not a user error.
const maxGenerateAttempts = 5

// Compile-time check
var _ CodeUseCase = (*codeUC)(nil)

// CreateCodeParams carries the admin-supplied fields for a new code.
type CreateCodeParams struct {
	PartnerID               string
	ModuleID                *string
	Name                    string
	Description             string
	ExpiresAt               time.Time
	ActivityDurationMinutes int
	MaxUses                 int
}

// UpdateCodeParams carries the mutable fields; nil means "leave unchanged".
// The code string, partner and creation time are immutable.
type UpdateCodeParams struct {
	Name                    *string
	Description             *string
	ExpiresAt               *time.Time
	ActivityDurationMinutes *int
	MaxUses                 *int
}

// CodeWithStatus pairs a stored code with its status derived at read time.
type CodeWithStatus struct {
	Code   *model.AccessCode
	Status model.CodeStatus
}

// CodeFilter narrows List results. Status is matched against the derived
// status computed per item at response time.
type CodeFilter struct {
	PartnerID string
	Status    model.CodeStatus
	Search    string
	Offset    int
	Limit     int
}

// UsageHistory is the ledger plus its aggregates for one code.
type UsageHistory struct {
	Records []*model.UsageRecord
	Stats   *model.UsageStats
}

// CodeUseCase is the admin query/command facade for access codes. It is the
// only surface the administration UI talks to.
type CodeUseCase interface {
	Create(ctx context.Context, params CreateCodeParams) (*model.AccessCode, error)
	Get(ctx context.Context, id string) (*CodeWithStatus, error)
	Update(ctx context.Context, id string, params UpdateCodeParams) (*model.AccessCode, error)
	SetActive(ctx context.Context, id string, active bool) (*model.AccessCode, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter CodeFilter) ([]*CodeWithStatus, error)
	UsageHistory(ctx context.Context, id string) (*UsageHistory, error)
	PartnerUsage(ctx context.Context, partnerID string) (*model.UsageStats, error)
}

type codeUC struct {
	codes   repository.AccessCodeRepository
	records repository.UsageRecordRepository

	log *zerolog.Logger
}

func NewCodeUseCase(codes repository.AccessCodeRepository, records repository.UsageRecordRepository, logger *zerolog.Logger) *codeUC {
	l := logger.With().Str("component", "CodeUC").Logger()
	return &codeUC{codes: codes, records: records, log: &l}
}

// Create validates the params, generates a unique code string and inserts
// the record. Collisions with existing code strings are retried a bounded
// number of times before escalating.
func (uc *codeUC) Create(ctx context.Context, params CreateCodeParams) (*model.AccessCode, error) {
	code, err := model.NewAccessCode(
		params.PartnerID, params.ModuleID, params.Name, params.Description,
		params.ExpiresAt, params.ActivityDurationMinutes, params.MaxUses,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		codeStr, err := generateAccessCode()
		if err != nil {
			return nil, err
		}
		code.ID = uuid.NewString()
		code.Code = codeStr

		err = uc.codes.Save(ctx, repository.NoTX, code)
		if err == nil {
			uc.log.Info().Str("code_id", code.ID).Str("partner_id", code.PartnerID).Msg("access code created")
			return code, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		uc.log.Warn().Int("attempt", attempt+1).Msg("code string collision, retrying")
	}
	return nil, domain.ErrCodeCollision
}

func (uc *codeUC) Get(ctx context.Context, id string) (*CodeWithStatus, error) {
	code, err := uc.codes.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	return &CodeWithStatus{Code: code, Status: code.Status(time.Now())}, nil
}

// Update applies the mutable fields under the same constraints as creation.
// Lowering max_uses below current_uses is rejected: it would retroactively
// misrepresent usage that was already granted.
func (uc *codeUC) Update(ctx context.Context, id string, params UpdateCodeParams) (*model.AccessCode, error) {
	code, err := uc.codes.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if *params.Name == "" {
			return nil, domain.ErrInvalidArgument
		}
		code.Name = *params.Name
	}
	if params.Description != nil {
		code.Description = *params.Description
	}
	if params.ExpiresAt != nil {
		if !params.ExpiresAt.After(time.Now()) {
			return nil, domain.ErrInvalidArgument
		}
		code.ExpiresAt = *params.ExpiresAt
	}
	if params.ActivityDurationMinutes != nil {
		if *params.ActivityDurationMinutes < 1 {
			return nil, domain.ErrInvalidArgument
		}
		code.ActivityDurationMinutes = *params.ActivityDurationMinutes
	}
	if params.MaxUses != nil {
		if *params.MaxUses < 1 || *params.MaxUses < code.CurrentUses {
			return nil, domain.ErrInvalidArgument
		}
		code.MaxUses = *params.MaxUses
	}

	if err := uc.codes.Update(ctx, repository.NoTX, code); err != nil {
		return nil, err
	}
	return code, nil
}

// SetActive flips the administrator kill switch, nothing else.
func (uc *codeUC) SetActive(ctx context.Context, id string, active bool) (*model.AccessCode, error) {
	code, err := uc.codes.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	code.IsActive = active
	if err := uc.codes.Update(ctx, repository.NoTX, code); err != nil {
		return nil, err
	}
	uc.log.Info().Str("code_id", id).Bool("is_active", active).Msg("access code toggled")
	return code, nil
}

func (uc *codeUC) Delete(ctx context.Context, id string) error {
	if err := uc.codes.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	uc.log.Info().Str("code_id", id).Msg("access code deleted")
	return nil
}

// List returns matching codes with their status derived at response time.
// The status filter is applied here, against the same projection the rest of
// the system uses, so there is exactly one copy of the lifecycle rules.
func (uc *codeUC) List(ctx context.Context, filter CodeFilter) ([]*CodeWithStatus, error) {
	codes, err := uc.codes.List(ctx, repository.NoTX, repository.ListFilter{
		PartnerID: filter.PartnerID,
		Search:    filter.Search,
		Offset:    filter.Offset,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]*CodeWithStatus, 0, len(codes))
	for _, c := range codes {
		status := c.Status(now)
		if filter.Status != "" && status != filter.Status {
			continue
		}
		out = append(out, &CodeWithStatus{Code: c, Status: status})
	}
	return out, nil
}

func (uc *codeUC) UsageHistory(ctx context.Context, id string) (*UsageHistory, error) {
	if _, err := uc.codes.FindByID(ctx, repository.NoTX, id); err != nil {
		return nil, err
	}
	records, err := uc.records.ListByCode(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	stats, err := uc.records.StatsByCode(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	return &UsageHistory{Records: records, Stats: stats}, nil
}

func (uc *codeUC) PartnerUsage(ctx context.Context, partnerID string) (*model.UsageStats, error) {
	if partnerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.records.StatsByPartner(ctx, repository.NoTX, partnerID)
}
