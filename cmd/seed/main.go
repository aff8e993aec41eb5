package main

import (
	"context"
	"flag"
	"log"
	"time"

	"elearning-partner-access/internal/config"
	"elearning-partner-access/internal/infra/db/postgres"
	"elearning-partner-access/internal/infra/logging"
	"elearning-partner-access/internal/usecase"
)

// Batch-issues access codes for a partner, printing the generated code
// strings for distribution.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	partnerID := flag.String("partner", "", "owning partner id (required)")
	moduleID := flag.String("module", "", "module the codes unlock (empty = all modules)")
	name := flag.String("name", "Batch code", "display name for the codes")
	count := flag.Int("count", 1, "number of codes to issue")
	validDays := flag.Int("valid-days", 30, "days until the codes expire")
	durationMinutes := flag.Int("duration", 60, "session length in minutes per redemption")
	maxUses := flag.Int("max-uses", 1, "redemptions allowed per code")
	flag.Parse()

	if *partnerID == "" {
		log.Fatal("-partner is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	codeUC := usecase.NewCodeUseCase(postgres.NewAccessCodeRepo(pool), postgres.NewUsageRecordRepo(pool), logger)

	var mod *string
	if *moduleID != "" {
		mod = moduleID
	}
	expiresAt := time.Now().Add(time.Duration(*validDays) * 24 * time.Hour)

	for i := 0; i < *count; i++ {
		code, err := codeUC.Create(ctx, usecase.CreateCodeParams{
			PartnerID:               *partnerID,
			ModuleID:                mod,
			Name:                    *name,
			ExpiresAt:               expiresAt,
			ActivityDurationMinutes: *durationMinutes,
			MaxUses:                 *maxUses,
		})
		if err != nil {
			log.Fatalf("failed to create code %d/%d: %v", i+1, *count, err)
		}
		log.Printf("%s", code.Code)
	}
}
