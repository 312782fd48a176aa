// File: cmd/sweep/main.go
// Standalone expiry sweep, meant for cron or one-off operator runs.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"telegram-paid-access/internal/config"
	pg "telegram-paid-access/internal/infra/db/postgres"
	"telegram-paid-access/internal/infra/logging"
	"telegram-paid-access/internal/infra/security"
	tele "telegram-paid-access/internal/infra/telegram"
	"telegram-paid-access/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	timeout := flag.Duration("timeout", 10*time.Minute, "sweep deadline")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Fatal().Msg("security.encryption_key must be 32 bytes")
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	botRepo := pg.NewManagedBotRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	resRepo := pg.NewResourceRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	gateways := tele.NewFactory(botRepo, encSvc, logger)
	orch := usecase.NewAccessOrchestrator(subRepo, planRepo, resRepo, gateways, logger)
	expiryUC := usecase.NewExpiryUseCase(subRepo, botRepo, orch, gateways, cfg.Sweeper.NotifyBuyer, logger)

	report, err := expiryUC.Sweep(ctx, time.Now())
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}
	logger.Info().
		Int("total", report.Total).
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Msg("sweep finished")
}
