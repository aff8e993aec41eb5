package web

import (
	"context"
	"sync"
	"time"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/usecase"
)

// --- Mock use cases ---

type mockCodeUC struct {
	mu    sync.Mutex
	codes map[string]*model.AccessCode

	CreateError error
	ListError   error
}

var _ usecase.CodeUseCase = (*mockCodeUC)(nil)

func newMockCodeUC() *mockCodeUC {
	return &mockCodeUC{codes: map[string]*model.AccessCode{}}
}

func (m *mockCodeUC) Create(ctx context.Context, params usecase.CreateCodeParams) (*model.AccessCode, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	now := time.Now()
	code, err := model.NewAccessCode(params.PartnerID, params.ModuleID, params.Name, params.Description,
		params.ExpiresAt, params.ActivityDurationMinutes, params.MaxUses, now)
	if err != nil {
		return nil, err
	}
	code.ID = "code-" + params.Name
	code.Code = "TEST-TEST-TEST"
	m.mu.Lock()
	m.codes[code.ID] = code
	m.mu.Unlock()
	return code, nil
}

func (m *mockCodeUC) Get(ctx context.Context, id string) (*usecase.CodeWithStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &usecase.CodeWithStatus{Code: c, Status: c.Status(time.Now())}, nil
}

func (m *mockCodeUC) Update(ctx context.Context, id string, params usecase.UpdateCodeParams) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if params.MaxUses != nil && (*params.MaxUses < 1 || *params.MaxUses < c.CurrentUses) {
		return nil, domain.ErrInvalidArgument
	}
	if params.Name != nil {
		c.Name = *params.Name
	}
	return c, nil
}

func (m *mockCodeUC) SetActive(ctx context.Context, id string, active bool) (*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.IsActive = active
	return c, nil
}

func (m *mockCodeUC) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.codes, id)
	return nil
}

func (m *mockCodeUC) List(ctx context.Context, filter usecase.CodeFilter) ([]*usecase.CodeWithStatus, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []*usecase.CodeWithStatus{}
	for _, c := range m.codes {
		out = append(out, &usecase.CodeWithStatus{Code: c, Status: c.Status(now)})
	}
	return out, nil
}

func (m *mockCodeUC) UsageHistory(ctx context.Context, id string) (*usecase.UsageHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return &usecase.UsageHistory{
		Records: []*model.UsageRecord{},
		Stats:   &model.UsageStats{},
	}, nil
}

func (m *mockCodeUC) PartnerUsage(ctx context.Context, partnerID string) (*model.UsageStats, error) {
	return &model.UsageStats{}, nil
}

type mockRedemptionUC struct {
	RedeemFunc func(ctx context.Context, codeString, identity string, now time.Time) (*model.UsageRecord, time.Time, error)
	CloseFunc  func(ctx context.Context, id string, endedAt time.Time) (*model.UsageRecord, error)
}

var _ usecase.RedemptionUseCase = (*mockRedemptionUC)(nil)

func (m *mockRedemptionUC) Redeem(ctx context.Context, codeString, identity string, now time.Time) (*model.UsageRecord, time.Time, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, codeString, identity, now)
	}
	return &model.UsageRecord{
		ID:               "01TESTULID",
		AccessCodeID:     "code-1",
		RedeemerIdentity: identity,
		UsedAt:           now,
		SessionStartedAt: now,
	}, now.Add(time.Hour), nil
}

func (m *mockRedemptionUC) CloseSession(ctx context.Context, id string, endedAt time.Time) (*model.UsageRecord, error) {
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx, id, endedAt)
	}
	minutes := 10
	return &model.UsageRecord{
		ID:                     id,
		SessionEndedAt:         &endedAt,
		SessionDurationMinutes: &minutes,
	}, nil
}
