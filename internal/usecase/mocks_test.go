package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
)

// -----------------------------
// In-memory AccessCodeRepository
// -----------------------------

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.AccessCode // by id

	// SaveFunc, when set, intercepts Save (used to force collisions).
	SaveFunc func(ctx context.Context, tx repository.Tx, code *model.AccessCode) error
}

var _ repository.AccessCodeRepository = (*memCodeRepo)(nil)

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: map[string]*model.AccessCode{}}
}

func (m *memCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code == code.Code {
			return domain.ErrAlreadyExists
		}
	}
	cp := *code
	m.codes[code.ID] = &cp
	return nil
}

func (m *memCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCodeRepo) Update(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[code.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Name = code.Name
	stored.Description = code.Description
	stored.ExpiresAt = code.ExpiresAt
	stored.ActivityDurationMinutes = code.ActivityDurationMinutes
	stored.MaxUses = code.MaxUses
	stored.IsActive = code.IsActive
	return nil
}

func (m *memCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.codes, id)
	return nil
}

func (m *memCodeRepo) List(ctx context.Context, tx repository.Tx, filter repository.ListFilter) ([]*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AccessCode
	for _, c := range m.codes {
		if filter.PartnerID != "" && c.PartnerID != filter.PartnerID {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Name), s) &&
				!strings.Contains(strings.ToLower(c.Description), s) &&
				!strings.Contains(strings.ToLower(c.Code), s) {
				continue
			}
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ConsumeUse mirrors the store-level conditional update: check and
// increment under one lock so concurrent callers cannot both take the last
// slot.
func (m *memCodeRepo) ConsumeUse(ctx context.Context, tx repository.Tx, id string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if !c.IsActive || !c.ExpiresAt.After(now) || c.CurrentUses >= c.MaxUses {
		return 0, domain.ErrNotFound
	}
	c.CurrentUses++
	return c.CurrentUses, nil
}

// -----------------------------
// In-memory UsageRecordRepository
// -----------------------------

type memRecordRepo struct {
	mu      sync.Mutex
	records map[string]*model.UsageRecord
}

var _ repository.UsageRecordRepository = (*memRecordRepo)(nil)

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: map[string]*model.UsageRecord{}}
}

func (m *memRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRecordRepo) ListByCode(ctx context.Context, tx repository.Tx, accessCodeID string) ([]*model.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UsageRecord
	for _, rec := range m.records {
		if rec.AccessCodeID == accessCodeID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRecordRepo) CloseSession(ctx context.Context, tx repository.Tx, id string, endedAt time.Time, durationMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.SessionEndedAt != nil {
		return domain.ErrNotFound
	}
	e := endedAt
	d := durationMinutes
	rec.SessionEndedAt = &e
	rec.SessionDurationMinutes = &d
	return nil
}

func (m *memRecordRepo) StatsByCode(ctx context.Context, tx repository.Tx, accessCodeID string) (*model.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s model.UsageStats
	var sum int
	for _, rec := range m.records {
		if rec.AccessCodeID != accessCodeID {
			continue
		}
		s.TotalUsages++
		if rec.SessionEndedAt == nil {
			s.ActiveSessions++
		} else {
			s.CompletedSessions++
			sum += *rec.SessionDurationMinutes
		}
	}
	if s.CompletedSessions > 0 {
		s.AverageDuration = float64(sum) / float64(s.CompletedSessions)
	}
	return &s, nil
}

func (m *memRecordRepo) StatsByPartner(ctx context.Context, tx repository.Tx, partnerID string) (*model.UsageStats, error) {
	// Partner scoping needs the code table; unit tests only exercise the
	// per-code variant against this mock.
	return &model.UsageStats{}, nil
}

// -----------------------------
// Pass-through TransactionManager
// -----------------------------

type memTxManager struct{}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
