package repository

import (
	"context"

	"telegram-paid-access/internal/domain/model"
)

// ManagedBotRepository is the port for managed-bot records.
type ManagedBotRepository interface {
	Save(ctx context.Context, tx Tx, bot *model.ManagedBot) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ManagedBot, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.ManagedBot, error)
}
