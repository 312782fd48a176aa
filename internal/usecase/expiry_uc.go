// File: internal/usecase/expiry_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
)

// Revoker is the slice of the orchestrator the sweeper needs.
type Revoker interface {
	Revoke(ctx context.Context, subscriptionID string) (bool, error)
}

// SweepReport aggregates one sweep invocation.
type SweepReport struct {
	Processed int
	Failed    int
	Total     int
}

// ExpiryUseCase reconciles elapsed subscriptions: revoke access, mark the row
// expired, optionally notify the buyer. Each subscription's failure is
// isolated so one bad record never aborts the batch, and a revoke failure
// never blocks marking the term over.
type ExpiryUseCase struct {
	subRepo  repository.SubscriptionRepository
	botRepo  repository.ManagedBotRepository
	revoker  Revoker
	gateways adapter.GatewayFactory
	notify   bool
	log      *zerolog.Logger
}

func NewExpiryUseCase(
	subRepo repository.SubscriptionRepository,
	botRepo repository.ManagedBotRepository,
	revoker Revoker,
	gateways adapter.GatewayFactory,
	notify bool,
	logger *zerolog.Logger,
) *ExpiryUseCase {
	exLog := logger.With().Str("component", "ExpiryUseCase").Logger()
	return &ExpiryUseCase{
		subRepo:  subRepo,
		botRepo:  botRepo,
		revoker:  revoker,
		gateways: gateways,
		notify:   notify,
		log:      &exLog,
	}
}

// Sweep processes every subscription whose term elapsed at or before now.
// Idempotent per invocation: a row another sweep already expired counts as
// processed, not failed.
func (uc *ExpiryUseCase) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	expired, err := uc.subRepo.FindExpired(ctx, repository.NoTX, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &SweepReport{}, nil
		}
		return nil, err
	}

	report := &SweepReport{Total: len(expired)}
	for _, sub := range expired {
		if uc.expireOne(ctx, sub) {
			report.Processed++
		} else {
			report.Failed++
		}
	}
	if report.Total > 0 {
		uc.log.Info().
			Int("processed", report.Processed).
			Int("failed", report.Failed).
			Int("total", report.Total).
			Msg("sweep completed")
	}
	return report, nil
}

// expireOne handles a single subscription and reports whether it ended up
// expired in the ledger.
func (uc *ExpiryUseCase) expireOne(ctx context.Context, sub *model.Subscription) bool {
	// Kick failures are residual risk, logged and left for manual
	// remediation; they must not keep the row active.
	if ok, err := uc.revoker.Revoke(ctx, sub.ID); err != nil {
		uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("revoke failed")
	} else if !ok {
		uc.log.Warn().Str("subscription_id", sub.ID).Msg("revoke partially failed")
	}

	if _, err := uc.subRepo.UpdateStatus(ctx, repository.NoTX, sub.ID, model.SubscriptionStatusActive, model.SubscriptionStatusExpired); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A concurrent sweep won the compare-and-swap; the row is
			// already expired.
			return true
		}
		uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to mark subscription expired")
		return false
	}

	if uc.notify {
		uc.notifyBuyer(ctx, sub)
	}
	return true
}

func (uc *ExpiryUseCase) notifyBuyer(ctx context.Context, sub *model.Subscription) {
	bot, err := uc.botRepo.FindByID(ctx, repository.NoTX, sub.BotID)
	if err != nil {
		uc.log.Warn().Err(err).Str("bot_id", sub.BotID).Msg("cannot load bot for expiry notification")
		return
	}
	gw, err := uc.gateways.ForBot(ctx, sub.BotID)
	if err != nil {
		uc.log.Warn().Err(err).Str("bot_id", sub.BotID).Msg("cannot build gateway for expiry notification")
		return
	}
	if err := gw.SendMessage(ctx, sub.BuyerTgID, bot.Message(model.MsgExpired)); err != nil {
		uc.log.Warn().Err(err).Int64("buyer", sub.BuyerTgID).Msg("expiry notification failed")
	}
}
