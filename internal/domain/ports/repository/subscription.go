package repository

import (
	"context"
	"time"

	"telegram-paid-access/internal/domain/model"
)

// PendingSubscriptionRepository is the ledger port for purchase requests.
//
// UpdateStatus is a compare-and-swap: the row is only written when its current
// status equals `from`. A zero-row update surfaces as domain.ErrNotFound so
// concurrent approve/reject callers observe exactly one winner.
type PendingSubscriptionRepository interface {
	Insert(ctx context.Context, tx Tx, p *model.PendingSubscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PendingSubscription, error)
	FindOpenByBuyerAndBot(ctx context.Context, tx Tx, buyerTgID int64, botID string) (*model.PendingSubscription, error)
	ListOpenByBot(ctx context.Context, tx Tx, botID string) ([]*model.PendingSubscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.PendingStatus) (*model.PendingSubscription, error)
}

// SubscriptionRepository is the ledger port for active/expired subscriptions.
// All status writes go through UpdateStatus, a compare-and-swap as above.
type SubscriptionRepository interface {
	Insert(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	ListActiveByBuyerAndBot(ctx context.Context, tx Tx, buyerTgID int64, botID string) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.SubscriptionStatus) (*model.Subscription, error)
	// FindExpired returns subscriptions still marked active whose term elapsed
	// at or before now.
	FindExpired(ctx context.Context, tx Tx, now time.Time) ([]*model.Subscription, error)

	// CountByStatus feeds the subscriptions gauge.
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
