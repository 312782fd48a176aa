// File: internal/infra/worker/access_dispatcher.go
package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
	"telegram-paid-access/internal/infra/metrics"
	"telegram-paid-access/internal/usecase"
)

const taskTimeout = 2 * time.Minute

// AccessDispatcher implements usecase.AccessScheduler on top of the pool.
// Each scheduled grant runs the orchestrator and then messages the buyer with
// the approval template plus whatever invite links were minted; a scheduled
// revoke just runs the orchestrator. Dropped tasks are counted, not retried.
type AccessDispatcher struct {
	pool     *Pool
	orch     *usecase.AccessOrchestrator
	subRepo  repository.SubscriptionRepository
	botRepo  repository.ManagedBotRepository
	gateways adapter.GatewayFactory
	log      *zerolog.Logger
}

var _ usecase.AccessScheduler = (*AccessDispatcher)(nil)

func NewAccessDispatcher(
	pool *Pool,
	orch *usecase.AccessOrchestrator,
	subRepo repository.SubscriptionRepository,
	botRepo repository.ManagedBotRepository,
	gateways adapter.GatewayFactory,
	logger *zerolog.Logger,
) *AccessDispatcher {
	adLog := logger.With().Str("component", "AccessDispatcher").Logger()
	return &AccessDispatcher{
		pool:     pool,
		orch:     orch,
		subRepo:  subRepo,
		botRepo:  botRepo,
		gateways: gateways,
		log:      &adLog,
	}
}

func (d *AccessDispatcher) ScheduleGrant(subscriptionID string) {
	err := d.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()
		return d.runGrant(ctx, subscriptionID)
	})
	if err != nil {
		metrics.IncAccessTaskDropped()
		d.log.Error().Err(err).Str("subscription_id", subscriptionID).Msg("grant task dropped")
	}
}

func (d *AccessDispatcher) ScheduleRevoke(subscriptionID string) {
	err := d.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()
		ok, err := d.orch.Revoke(ctx, subscriptionID)
		if err != nil {
			metrics.IncRevocation("error")
			return err
		}
		if ok {
			metrics.IncRevocation("success")
		} else {
			metrics.IncRevocation("partial")
		}
		return nil
	})
	if err != nil {
		metrics.IncAccessTaskDropped()
		d.log.Error().Err(err).Str("subscription_id", subscriptionID).Msg("revoke task dropped")
	}
}

func (d *AccessDispatcher) runGrant(ctx context.Context, subscriptionID string) error {
	result, err := d.orch.Grant(ctx, subscriptionID)
	if err != nil {
		metrics.IncGrant("error")
		return err
	}
	if result.Success {
		metrics.IncGrant("success")
	} else {
		metrics.IncGrant("partial")
	}

	d.notifyBuyer(ctx, subscriptionID, result)
	return nil
}

// notifyBuyer sends the approval template followed by the invite links. A
// messaging failure is logged and swallowed: access has already been granted.
func (d *AccessDispatcher) notifyBuyer(ctx context.Context, subscriptionID string, result *usecase.GrantResult) {
	sub, err := d.subRepo.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		d.log.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("cannot load subscription for notification")
		return
	}
	bot, err := d.botRepo.FindByID(ctx, repository.NoTX, sub.BotID)
	if err != nil {
		d.log.Warn().Err(err).Str("bot_id", sub.BotID).Msg("cannot load bot for notification")
		return
	}
	gw, err := d.gateways.ForBot(ctx, sub.BotID)
	if err != nil {
		d.log.Warn().Err(err).Str("bot_id", sub.BotID).Msg("cannot build gateway for notification")
		return
	}

	text := bot.Message(model.MsgApproved)
	if len(result.Links) > 0 {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n")
		ids := make([]string, 0, len(result.Links))
		for id := range result.Links {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "\n%s", result.Links[id])
		}
		text = b.String()
	}
	if err := gw.SendMessage(ctx, sub.BuyerTgID, text); err != nil {
		d.log.Warn().Err(err).Int64("buyer", sub.BuyerTgID).Msg("approval notification failed")
	}
}
