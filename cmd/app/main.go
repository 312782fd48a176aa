// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-paid-access/internal/config"
	"telegram-paid-access/internal/domain/ports/repository"
	pg "telegram-paid-access/internal/infra/db/postgres"
	"telegram-paid-access/internal/infra/logging"
	"telegram-paid-access/internal/infra/metrics"
	red "telegram-paid-access/internal/infra/redis"
	"telegram-paid-access/internal/infra/sched"
	"telegram-paid-access/internal/infra/security"
	tele "telegram-paid-access/internal/infra/telegram"
	"telegram-paid-access/internal/infra/web"
	"telegram-paid-access/internal/infra/worker"
	"telegram-paid-access/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	botRepo := pg.NewManagedBotRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	resRepo := pg.NewResourceRepo(pool)
	pendingRepo := pg.NewPendingSubscriptionRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Gateways and orchestration ----
	gateways := tele.NewFactory(botRepo, encSvc, logger)
	orch := usecase.NewAccessOrchestrator(subRepo, planRepo, resRepo, gateways, logger)

	taskPool := worker.NewPool(cfg.Worker.AccessTasks, logger)
	taskPool.Start(ctx)
	defer taskPool.Stop()
	dispatcher := worker.NewAccessDispatcher(taskPool, orch, subRepo, botRepo, gateways, logger)

	lifecycle := usecase.NewLifecycleUseCase(pendingRepo, subRepo, planRepo, tm, dispatcher, logger)
	expiryUC := usecase.NewExpiryUseCase(subRepo, botRepo, orch, gateways, cfg.Sweeper.NotifyBuyer, logger)

	// ---- Telegram polling bot ----
	managed, err := botRepo.FindByUsername(ctx, repository.NoTX, cfg.Bot.Username)
	if err != nil {
		logger.Fatal().Err(err).Str("username", cfg.Bot.Username).Msg("managed bot not found")
	}
	token, err := encSvc.Decrypt(managed.TokenEncrypted)
	if err != nil {
		logger.Fatal().Err(err).Msg("decrypt bot token")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot api")
	}
	gateways.Register(managed.ID, api)

	botAdapter, err := tele.NewBotAdapter(api, managed, lifecycle, planRepo, rateLimiter, cfg.Bot.Workers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot adapter")
	}
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	adminSrv := web.NewServer(lifecycle, expiryUC, planRepo, resRepo, subRepo, auth, cfg.Admin.APIKey, logger)
	go func() {
		if err := adminSrv.Start(cfg.Admin.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Expiry worker ----
	expiryWorker := sched.NewExpiryWorker(cfg.Sweeper.Interval, expiryUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	// ---- Subscription gauge refresher ----
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if counts, err := subRepo.CountByStatus(ctx, repository.NoTX); err == nil {
					metrics.SetSubscriptionsTotal(counts)
				}
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	botAdapter.StopPolling()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown")
	}
}
