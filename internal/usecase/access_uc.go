// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/adapter"
	"telegram-paid-access/internal/domain/ports/repository"
)

// GrantResult is the per-resource outcome of a grant operation. Success is
// true only when every resource operation succeeded; Links always carries the
// invite links that did succeed so callers can still show them to the buyer.
type GrantResult struct {
	Success bool
	Links   map[string]string // resource id -> invite link
	Failed  []string          // resource ids whose operation failed
}

// AccessOrchestrator translates a subscription into concrete grant/revoke
// operations against the gateway. Both operations are idempotent under retry:
// minting a fresh invite link twice is harmless and removing an
// already-removed member is harmless, so repeated delivery of the same task
// never corrupts state.
type AccessOrchestrator struct {
	subRepo  repository.SubscriptionRepository
	planRepo repository.PlanRepository
	resRepo  repository.ResourceRepository
	gateways adapter.GatewayFactory
	log      *zerolog.Logger
}

func NewAccessOrchestrator(
	subRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	resRepo repository.ResourceRepository,
	gateways adapter.GatewayFactory,
	logger *zerolog.Logger,
) *AccessOrchestrator {
	aoLog := logger.With().Str("component", "AccessOrchestrator").Logger()
	return &AccessOrchestrator{
		subRepo:  subRepo,
		planRepo: planRepo,
		resRepo:  resRepo,
		gateways: gateways,
		log:      &aoLog,
	}
}

// resolveResources maps the plan's linked resource ids to records. A dangling
// id (resource deleted while still referenced) is skipped with a warn log
// rather than failing the whole operation; storage errors abort.
func (uc *AccessOrchestrator) resolveResources(ctx context.Context, plan *model.Plan) ([]*model.Resource, error) {
	resources := make([]*model.Resource, 0, len(plan.LinkedResourceIDs))
	for _, id := range plan.LinkedResourceIDs {
		res, err := uc.resRepo.FindByID(ctx, repository.NoTX, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				uc.log.Warn().Str("resource_id", id).Str("plan_id", plan.ID).Msg("linked resource no longer exists, skipping")
				continue
			}
			return nil, fmt.Errorf("resolve resource %s: %w", id, err)
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// Grant admits the subscription's buyer to every resource of its plan.
// Strategy per resource: custom returns the stored link verbatim, request
// approves the buyer's pending join request, unique/static mint or export an
// invite link via the gateway.
func (uc *AccessOrchestrator) Grant(ctx context.Context, subscriptionID string) (*GrantResult, error) {
	sub, err := uc.subRepo.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	plan, err := uc.planRepo.FindByID(ctx, repository.NoTX, sub.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	gw, err := uc.gateways.ForBot(ctx, sub.BotID)
	if err != nil {
		return nil, fmt.Errorf("gateway for bot %s: %w", sub.BotID, err)
	}

	resources, err := uc.resolveResources(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &GrantResult{Success: true, Links: map[string]string{}}
	if len(resources) == 0 {
		uc.log.Warn().Str("plan_id", plan.ID).Msg("plan has no resolvable resources")
		return result, nil
	}

	for _, res := range resources {
		switch {
		case res.InviteStrategy == model.InviteStrategyCustom && res.CustomLink != "":
			result.Links[res.ID] = res.CustomLink

		case res.InviteStrategy == model.InviteStrategyRequest:
			if err := gw.ApproveJoinRequest(ctx, res.TgChatID, sub.BuyerTgID); err != nil {
				uc.log.Error().Err(err).Str("resource_id", res.ID).Msg("approve join request failed")
				result.Failed = append(result.Failed, res.ID)
			}

		default:
			name := fmt.Sprintf("Subscription for user %d", sub.BuyerTgID)
			link, err := gw.CreateInviteLink(ctx, res.TgChatID, res.InviteStrategy, name)
			if err != nil {
				uc.log.Error().Err(err).Str("resource_id", res.ID).Msg("create invite link failed")
				result.Failed = append(result.Failed, res.ID)
				continue
			}
			result.Links[res.ID] = link
		}
	}

	result.Success = len(result.Failed) == 0
	uc.log.Info().
		Str("subscription_id", sub.ID).
		Bool("success", result.Success).
		Int("links", len(result.Links)).
		Int("failed", len(result.Failed)).
		Msg("grant completed")
	return result, nil
}

// Revoke removes the buyer from every resource of the subscription's plan.
// "Already removed" is indistinguishable from "removed now" and both count as
// success; only a transport failure counts against the result. A plan whose
// resource set resolves empty is trivially successful.
func (uc *AccessOrchestrator) Revoke(ctx context.Context, subscriptionID string) (bool, error) {
	sub, err := uc.subRepo.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return false, err
	}
	plan, err := uc.planRepo.FindByID(ctx, repository.NoTX, sub.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.ErrPlanNotFound
		}
		return false, err
	}
	gw, err := uc.gateways.ForBot(ctx, sub.BotID)
	if err != nil {
		return false, fmt.Errorf("gateway for bot %s: %w", sub.BotID, err)
	}

	resources, err := uc.resolveResources(ctx, plan)
	if err != nil {
		return false, err
	}
	if len(resources) == 0 {
		return true, nil
	}

	allOK := true
	for _, res := range resources {
		if err := gw.RemoveMember(ctx, res.TgChatID, sub.BuyerTgID); err != nil {
			allOK = false
			uc.log.Error().Err(err).
				Int64("buyer", sub.BuyerTgID).
				Str("resource_id", res.ID).
				Msg("failed to remove member")
		}
	}
	uc.log.Info().Str("subscription_id", sub.ID).Bool("success", allOK).Msg("revoke completed")
	return allOK, nil
}
