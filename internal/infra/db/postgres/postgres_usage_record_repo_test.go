//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"

	"github.com/oklog/ulid/v2"
)

func testRecord(codeID, identity string, at time.Time) *model.UsageRecord {
	return &model.UsageRecord{
		ID:               ulid.Make().String(),
		AccessCodeID:     codeID,
		RedeemerIdentity: identity,
		UsedAt:           at,
		SessionStartedAt: at,
	}
}

func TestUsageRecordRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	codeRepo := NewAccessCodeRepo(testPool)
	repo := NewUsageRecordRepo(testPool)

	setupCode := func(t *testing.T, codeStr string) *model.AccessCode {
		t.Helper()
		cleanup(t)
		code := testCode(codeStr, 10)
		if err := codeRepo.Save(ctx, nil, code); err != nil {
			t.Fatalf("failed to save prerequisite code: %v", err)
		}
		return code
	}

	t.Run("should save and list records oldest first", func(t *testing.T) {
		code := setupCode(t, "LEDG-ERLI-ST01")

		now := time.Now()
		first := testRecord(code.ID, "u1", now)
		second := testRecord(code.ID, "u2", now.Add(time.Second))
		for _, rec := range []*model.UsageRecord{first, second} {
			if err := repo.Save(ctx, nil, rec); err != nil {
				t.Fatalf("Failed to save record: %v", err)
			}
		}

		list, err := repo.ListByCode(ctx, nil, code.ID)
		if err != nil {
			t.Fatalf("ListByCode failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(list))
		}
		if list[0].ID != first.ID || list[1].ID != second.ID {
			t.Errorf("Records out of order: %s, %s", list[0].ID, list[1].ID)
		}
		if list[0].SessionEndedAt != nil || list[0].SessionDurationMinutes != nil {
			t.Error("Expected open sessions after save")
		}
	})

	t.Run("should close a session exactly once", func(t *testing.T) {
		code := setupCode(t, "CLOS-EONC-E001")

		now := time.Now()
		rec := testRecord(code.ID, "u1", now)
		if err := repo.Save(ctx, nil, rec); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}

		endedAt := now.Add(30 * time.Minute)
		if err := repo.CloseSession(ctx, nil, rec.ID, endedAt, 30); err != nil {
			t.Fatalf("CloseSession failed: %v", err)
		}

		closed, err := repo.FindByID(ctx, nil, rec.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if closed.SessionEndedAt == nil || closed.SessionDurationMinutes == nil {
			t.Fatal("Close fields were not persisted")
		}
		if *closed.SessionDurationMinutes != 30 {
			t.Errorf("Expected 30 minute duration, got %d", *closed.SessionDurationMinutes)
		}

		// Second close must miss the session_ended_at IS NULL guard.
		if err := repo.CloseSession(ctx, nil, rec.ID, endedAt.Add(time.Hour), 90); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Expected guard miss on second close, got %v", err)
		}
		unchanged, _ := repo.FindByID(ctx, nil, rec.ID)
		if *unchanged.SessionDurationMinutes != 30 {
			t.Errorf("Duration changed after failed second close: %d", *unchanged.SessionDurationMinutes)
		}
	})

	t.Run("should aggregate stats per code and per partner", func(t *testing.T) {
		code := setupCode(t, "STAT-SAGG-R001")

		now := time.Now()
		recs := []*model.UsageRecord{
			testRecord(code.ID, "u1", now),
			testRecord(code.ID, "u2", now),
			testRecord(code.ID, "u3", now),
		}
		for _, rec := range recs {
			if err := repo.Save(ctx, nil, rec); err != nil {
				t.Fatalf("Failed to save record: %v", err)
			}
		}
		if err := repo.CloseSession(ctx, nil, recs[0].ID, now.Add(10*time.Minute), 10); err != nil {
			t.Fatalf("CloseSession failed: %v", err)
		}
		if err := repo.CloseSession(ctx, nil, recs[1].ID, now.Add(20*time.Minute), 20); err != nil {
			t.Fatalf("CloseSession failed: %v", err)
		}

		stats, err := repo.StatsByCode(ctx, nil, code.ID)
		if err != nil {
			t.Fatalf("StatsByCode failed: %v", err)
		}
		if stats.TotalUsages != 3 || stats.ActiveSessions != 1 || stats.CompletedSessions != 2 {
			t.Fatalf("Unexpected stats: %+v", stats)
		}
		if stats.AverageDuration != 15 {
			t.Errorf("Expected average duration 15, got %v", stats.AverageDuration)
		}

		partnerStats, err := repo.StatsByPartner(ctx, nil, code.PartnerID)
		if err != nil {
			t.Fatalf("StatsByPartner failed: %v", err)
		}
		if partnerStats.TotalUsages != 3 || partnerStats.AverageDuration != 15 {
			t.Fatalf("Unexpected partner stats: %+v", partnerStats)
		}
	})

	t.Run("should return zeroed stats for an unused code", func(t *testing.T) {
		code := setupCode(t, "ZERO-STAT-S001")

		stats, err := repo.StatsByCode(ctx, nil, code.ID)
		if err != nil {
			t.Fatalf("StatsByCode failed: %v", err)
		}
		if stats.TotalUsages != 0 || stats.ActiveSessions != 0 || stats.CompletedSessions != 0 || stats.AverageDuration != 0 {
			t.Fatalf("Expected zeroed stats, got %+v", stats)
		}
	})

	t.Run("should cascade delete with the code", func(t *testing.T) {
		code := setupCode(t, "CASC-ADED-EL01")

		rec := testRecord(code.ID, "u1", time.Now())
		if err := repo.Save(ctx, nil, rec); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
		if err := codeRepo.Delete(ctx, nil, code.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, rec.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Expected ledger entry to cascade, got %v", err)
		}
	})
}
