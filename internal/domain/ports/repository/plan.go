package repository

import (
	"context"

	"telegram-paid-access/internal/domain/model"
)

// PlanRepository is the port for plan persistence. The core only reads plans;
// writes exist for the admin surface and seeding.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListVisibleByBot(ctx context.Context, tx Tx, botID string) ([]*model.Plan, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
