// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/repository"
)

// AccessScheduler hands a grant/revoke task to a background executor. The call
// returns immediately; delivery is at-least-once and best-effort, which the
// orchestrator tolerates because its operations are idempotent.
type AccessScheduler interface {
	ScheduleGrant(subscriptionID string)
	ScheduleRevoke(subscriptionID string)
}

// LifecycleUseCase is the state machine controller for purchase requests and
// subscriptions: it creates pending requests, applies approve/reject
// decisions, and schedules access granting as a decoupled follow-up task.
type LifecycleUseCase struct {
	pendingRepo repository.PendingSubscriptionRepository
	subRepo     repository.SubscriptionRepository
	planRepo    repository.PlanRepository
	tm          repository.TransactionManager
	scheduler   AccessScheduler
	log         *zerolog.Logger
}

func NewLifecycleUseCase(
	pendingRepo repository.PendingSubscriptionRepository,
	subRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	tm repository.TransactionManager,
	scheduler AccessScheduler,
	logger *zerolog.Logger,
) *LifecycleUseCase {
	lcLog := logger.With().Str("component", "LifecycleUseCase").Logger()
	return &LifecycleUseCase{
		pendingRepo: pendingRepo,
		subRepo:     subRepo,
		planRepo:    planRepo,
		tm:          tm,
		scheduler:   scheduler,
		log:         &lcLog,
	}
}

// Request creates an open pending request for (buyer, bot, plan).
// Fails with domain.ErrPlanNotFound when the plan does not exist for the bot
// and domain.ErrDuplicatePending when an unresolved request already exists.
func (uc *LifecycleUseCase) Request(ctx context.Context, buyerTgID int64, botID, planID string) (*model.PendingSubscription, error) {
	plan, err := uc.planRepo.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	if plan.BotID != botID {
		return nil, domain.ErrPlanNotFound
	}

	if existing, err := uc.pendingRepo.FindOpenByBuyerAndBot(ctx, repository.NoTX, buyerTgID, botID); err == nil && existing != nil {
		return nil, domain.ErrDuplicatePending
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err := model.NewPendingSubscription(ulid.Make().String(), buyerTgID, botID, planID)
	if err != nil {
		return nil, err
	}
	if err := uc.pendingRepo.Insert(ctx, repository.NoTX, p); err != nil {
		// A concurrent request can slip past the pre-check; the partial
		// unique index turns it into a conflict here.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrDuplicatePending
		}
		return nil, err
	}
	uc.log.Info().Str("pending_id", p.ID).Int64("buyer", buyerTgID).Str("plan_id", planID).Msg("pending request created")
	return p, nil
}

// Approve promotes an open pending request to an active subscription and
// schedules the access grant. The subscription insert and the pending status
// flip happen in one transaction: if either fails the request stays
// pending_approval and the operation is safely retryable. Granting is never
// performed synchronously here.
func (uc *LifecycleUseCase) Approve(ctx context.Context, pendingID string) (*model.Subscription, error) {
	p, err := uc.pendingRepo.FindByID(ctx, repository.NoTX, pendingID)
	if err != nil {
		return nil, err
	}
	if !p.Open() {
		return nil, &domain.AlreadyProcessedError{Status: string(p.Status)}
	}

	plan, err := uc.planRepo.FindByID(ctx, repository.NoTX, p.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}

	sub, err := model.NewSubscription(uuid.NewString(), p.BuyerTgID, p.BotID, plan)
	if err != nil {
		return nil, err
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.subRepo.Insert(ctx, tx, sub); err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		// Conditional update: only the caller that still sees
		// pending_approval wins; a concurrent decision aborts us here and
		// rolls the insert back with it.
		if _, err := uc.pendingRepo.UpdateStatus(ctx, tx, p.ID, model.PendingStatusAwaitingApproval, model.PendingStatusApproved); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.AlreadyProcessedError{Status: string(model.PendingStatusApproved)}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("pending_id", p.ID).
		Str("subscription_id", sub.ID).
		Time("end_at", sub.EndAt).
		Msg("pending request approved")

	if uc.scheduler != nil {
		uc.scheduler.ScheduleGrant(sub.ID)
	}
	return sub, nil
}

// Reject marks an open pending request rejected. No subscription is created.
func (uc *LifecycleUseCase) Reject(ctx context.Context, pendingID string) (*model.PendingSubscription, error) {
	p, err := uc.pendingRepo.FindByID(ctx, repository.NoTX, pendingID)
	if err != nil {
		return nil, err
	}
	if !p.Open() {
		return nil, &domain.AlreadyProcessedError{Status: string(p.Status)}
	}

	updated, err := uc.pendingRepo.UpdateStatus(ctx, repository.NoTX, p.ID, model.PendingStatusAwaitingApproval, model.PendingStatusRejected)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Lost the race against a concurrent approve/reject.
			return nil, &domain.AlreadyProcessedError{Status: string(model.PendingStatusApproved)}
		}
		return nil, err
	}
	uc.log.Info().Str("pending_id", p.ID).Msg("pending request rejected")
	return updated, nil
}

// ListOpenRequests returns the approval queue for a bot, oldest first.
func (uc *LifecycleUseCase) ListOpenRequests(ctx context.Context, botID string) ([]*model.PendingSubscription, error) {
	return uc.pendingRepo.ListOpenByBot(ctx, repository.NoTX, botID)
}

// CheckAccess reports whether the buyer currently holds access under the bot.
// With a resource id it additionally requires an active subscription whose
// plan links that resource.
func (uc *LifecycleUseCase) CheckAccess(ctx context.Context, buyerTgID int64, botID, resourceID string) (bool, error) {
	subs, err := uc.subRepo.ListActiveByBuyerAndBot(ctx, repository.NoTX, buyerTgID, botID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(subs) == 0 {
		return false, nil
	}
	if resourceID == "" {
		return true, nil
	}
	for _, s := range subs {
		plan, err := uc.planRepo.FindByID(ctx, repository.NoTX, s.PlanID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return false, err
		}
		if plan.LinksResource(resourceID) {
			return true, nil
		}
	}
	return false, nil
}
