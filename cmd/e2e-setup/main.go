package main

import (
	"context"
	"flag"
	"log"
	"time"

	"elearning-partner-access/internal/config"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/domain/ports/repository"
	"elearning-partner-access/internal/infra/db/postgres"
	"elearning-partner-access/internal/infra/redis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// This command sets up a clean, predictable database state for manual
// end-to-end testing of the access-code service.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache (rate-limit counters) if configured.
	if cfg.Redis.URL != "" {
		log.Println("[1/4] Wiping Redis cache...")
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		if err := redisClient.FlushDB(ctx); err != nil {
			log.Fatalf("failed to flush redis: %v", err)
		}
	} else {
		log.Println("[1/4] Redis not configured, skipping")
	}

	// 2. Ensure the schema exists.
	log.Println("[2/4] Applying schema...")
	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	// 3. Wipe existing data.
	log.Println("[3/4] Wiping all existing data...")
	if _, err := pool.Exec(ctx, `TRUNCATE access_codes, usage_records CASCADE;`); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 4. Seed a couple of codes in known states.
	log.Println("[4/4] Seeding test codes...")
	seedCodes(ctx, pool)

	log.Println("--- E2E Environment Setup Complete ---")
}

// seedCodes inserts codes covering each derived status so the admin UI has
// something to show immediately.
func seedCodes(ctx context.Context, pool *pgxpool.Pool) {
	repo := postgres.NewAccessCodeRepo(pool)
	now := time.Now()

	fresh := &model.AccessCode{
		ID: uuid.NewString(), Code: "DEMO-FRSH-0001", PartnerID: "partner-demo",
		Name: "Fresh demo code", CreatedAt: now, ExpiresAt: now.Add(30 * 24 * time.Hour),
		ActivityDurationMinutes: 60, MaxUses: 10, IsActive: true,
	}
	expired := &model.AccessCode{
		ID: uuid.NewString(), Code: "DEMO-EXPD-0001", PartnerID: "partner-demo",
		Name: "Expired demo code", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
		ActivityDurationMinutes: 60, MaxUses: 10, IsActive: true,
	}
	inactive := &model.AccessCode{
		ID: uuid.NewString(), Code: "DEMO-OFFF-0001", PartnerID: "partner-demo",
		Name: "Deactivated demo code", CreatedAt: now, ExpiresAt: now.Add(30 * 24 * time.Hour),
		ActivityDurationMinutes: 60, MaxUses: 10, IsActive: false,
	}

	for _, c := range []*model.AccessCode{fresh, expired, inactive} {
		if err := repo.Save(ctx, repository.NoTX, c); err != nil {
			log.Fatalf("failed to seed code %s: %v", c.Code, err)
		}
		log.Printf("seeded %s (%s)", c.Code, c.Status(time.Now()))
	}
}
