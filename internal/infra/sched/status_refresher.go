package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
	"elearning-partner-access/internal/infra/metrics"
)

// StatusRefresher periodically recomputes the codes-by-status gauge. Status
// is derived, never stored, so this is a read-only sweep through the same
// projection the API uses; no locking is involved and skipping a run only
// makes the gauge momentarily stale.
type StatusRefresher struct {
	interval time.Duration
	codes    repository.AccessCodeRepository
	log      *zerolog.Logger
}

const refreshPageSize = 500

func NewStatusRefresher(interval time.Duration, codes repository.AccessCodeRepository, logger *zerolog.Logger) *StatusRefresher {
	l := logger.With().Str("component", "StatusRefresher").Logger()
	return &StatusRefresher{interval: interval, codes: codes, log: &l}
}

func (w *StatusRefresher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting status refresher")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping status refresher")
			return ctx.Err()
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				w.log.Error().Err(err).Msg("status refresh failed")
			}
		}
	}
}

func (w *StatusRefresher) refresh(ctx context.Context) error {
	now := time.Now()
	counts := map[model.CodeStatus]int{}

	for offset := 0; ; offset += refreshPageSize {
		page, err := w.codes.List(ctx, repository.NoTX, repository.ListFilter{
			Offset: offset,
			Limit:  refreshPageSize,
		})
		if err != nil {
			return err
		}
		for _, c := range page {
			counts[c.Status(now)]++
		}
		if len(page) < refreshPageSize {
			break
		}
	}

	metrics.SetCodesTotal(counts)
	return nil
}
