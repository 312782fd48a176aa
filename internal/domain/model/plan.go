package model

import (
	"time"

	"telegram-paid-access/internal/domain"
)

// Plan is a purchasable bundle of resource access for a fixed duration.
// LinkedResourceIDs keeps the order the operator configured; the orchestrator
// processes resources in that order.
type Plan struct {
	ID                string
	BotID             string
	Name              string
	DurationDays      int
	LinkedResourceIDs []string
	IsVisible         bool
	Description       string
	CreatedAt         time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, botID, name string, durationDays int, resourceIDs []string) (*Plan, error) {
	if id == "" || botID == "" || name == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:                id,
		BotID:             botID,
		Name:              name,
		DurationDays:      durationDays,
		LinkedResourceIDs: append([]string(nil), resourceIDs...),
		IsVisible:         true,
		CreatedAt:         time.Now(),
	}, nil
}

// Duration returns the plan term as a time.Duration.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// LinksResource reports whether resourceID is part of this plan.
func (p *Plan) LinksResource(resourceID string) bool {
	for _, id := range p.LinkedResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}
