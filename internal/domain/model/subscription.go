package model

import (
	"time"

	"telegram-paid-access/internal/domain"
)

type PendingStatus string

const (
	PendingStatusAwaitingApproval PendingStatus = "pending_approval"
	PendingStatusApproved         PendingStatus = "approved"
	PendingStatusRejected         PendingStatus = "rejected"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// PendingSubscription is an unresolved purchase request awaiting an
// approve/reject decision. Terminal once approved or rejected; at most one
// open request exists per (buyer, bot) pair.
type PendingSubscription struct {
	ID        string // ULID, sortable by creation time
	BuyerTgID int64
	BotID     string
	PlanID    string
	CreatedAt time.Time
	Status    PendingStatus
}

// NewPendingSubscription constructs an open pending request.
func NewPendingSubscription(id string, buyerTgID int64, botID, planID string) (*PendingSubscription, error) {
	if id == "" || buyerTgID == 0 || botID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &PendingSubscription{
		ID:        id,
		BuyerTgID: buyerTgID,
		BotID:     botID,
		PlanID:    planID,
		CreatedAt: time.Now(),
		Status:    PendingStatusAwaitingApproval,
	}, nil
}

// Open reports whether the request is still awaiting a decision.
func (p *PendingSubscription) Open() bool {
	return p.Status == PendingStatusAwaitingApproval
}

// Subscription is an approved, time-boxed access record. EndAt is fixed at
// creation and never recomputed; status only moves active -> expired.
type Subscription struct {
	ID        string // UUID
	BuyerTgID int64
	BotID     string
	PlanID    string
	StartAt   time.Time
	EndAt     time.Time
	Status    SubscriptionStatus
}

// NewSubscription creates an active subscription starting now and ending
// after the plan's term.
func NewSubscription(id string, buyerTgID int64, botID string, plan *Plan) (*Subscription, error) {
	if id == "" || buyerTgID == 0 || botID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		BuyerTgID: buyerTgID,
		BotID:     botID,
		PlanID:    plan.ID,
		StartAt:   now,
		EndAt:     now.Add(plan.Duration()),
		Status:    SubscriptionStatusActive,
	}, nil
}

// ExpiredBy reports whether the term has elapsed relative to now.
func (s *Subscription) ExpiredBy(now time.Time) bool {
	return !s.EndAt.After(now)
}
