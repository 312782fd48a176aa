package repository

import (
	"context"

	"telegram-paid-access/internal/domain/model"
)

// ResourceRepository is the port for target-resource lookups. The core never
// mutates resources; Save/Delete serve the admin surface.
type ResourceRepository interface {
	Save(ctx context.Context, tx Tx, res *model.Resource) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Resource, error)
	ListByBot(ctx context.Context, tx Tx, botID string) ([]*model.Resource, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
