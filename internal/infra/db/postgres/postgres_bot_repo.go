package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.ManagedBotRepository = (*managedBotRepo)(nil)

type managedBotRepo struct {
	pool *pgxpool.Pool
}

func NewManagedBotRepo(pool *pgxpool.Pool) *managedBotRepo {
	return &managedBotRepo{pool: pool}
}

func (r *managedBotRepo) Save(ctx context.Context, tx repository.Tx, bot *model.ManagedBot) error {
	msgs, err := json.Marshal(bot.Messages)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO managed_bots (id, owner_tg_id, username, token_encrypted, messages, auto_approve, admin_tg_ids, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  owner_tg_id=$2, username=$3, token_encrypted=$4, messages=$5, auto_approve=$6, admin_tg_ids=$7;`

	_, err = execSQL(ctx, r.pool, tx, q,
		bot.ID, bot.OwnerTgID, bot.Username, bot.TokenEncrypted, msgs, bot.AutoApprove, bot.AdminTgIDs, bot.CreatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *managedBotRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ManagedBot, error) {
	const q = `
SELECT id, owner_tg_id, username, token_encrypted, messages, auto_approve, admin_tg_ids, created_at
  FROM managed_bots
 WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *managedBotRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.ManagedBot, error) {
	const q = `
SELECT id, owner_tg_id, username, token_encrypted, messages, auto_approve, admin_tg_ids, created_at
  FROM managed_bots
 WHERE username=$1;`
	return r.queryOne(ctx, tx, q, username)
}

func (r *managedBotRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.ManagedBot, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	b := &model.ManagedBot{}
	var msgs []byte
	if err := row.Scan(&b.ID, &b.OwnerTgID, &b.Username, &b.TokenEncrypted, &msgs, &b.AutoApprove, &b.AdminTgIDs, &b.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &b.Messages); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if b.Messages == nil {
		b.Messages = map[string]string{}
	}
	return b, nil
}
