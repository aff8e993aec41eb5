package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"elearning-partner-access/internal/config"
	pg "elearning-partner-access/internal/infra/db/postgres"
	"elearning-partner-access/internal/infra/logging"
	"elearning-partner-access/internal/infra/metrics"
	red "elearning-partner-access/internal/infra/redis"
	"elearning-partner-access/internal/infra/sched"
	"elearning-partner-access/internal/infra/web"
	"elearning-partner-access/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional; redemption rate limiting only) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; redeem rate limiting disabled")
	}

	// ---- Repositories ----
	codeRepo := pg.NewAccessCodeRepo(pool)
	recordRepo := pg.NewUsageRecordRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Use cases ----
	codeUC := usecase.NewCodeUseCase(codeRepo, recordRepo, logger)
	redeemUC := usecase.NewRedemptionUseCase(codeRepo, recordRepo, txm, logger)

	// ---- Status gauge refresher (optional, read-only) ----
	if cfg.Metrics.StatusRefreshInterval > 0 {
		refresher := sched.NewStatusRefresher(cfg.Metrics.StatusRefreshInterval, codeRepo, logger)
		go func() {
			if err := refresher.Run(ctx); err != nil && err != context.Canceled {
				logger.Error().Err(err).Msg("status refresher stopped")
			}
		}()
	}

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Secure, cfg.Auth.Domain, cfg.Auth.SessionTTL)
	server := web.NewServer(cfg, codeUC, redeemUC, auth, limiter, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
