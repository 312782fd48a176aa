package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PendingSubscriptionRepository = (*pendingRepo)(nil)

type pendingRepo struct {
	pool *pgxpool.Pool
}

func NewPendingSubscriptionRepo(pool *pgxpool.Pool) *pendingRepo {
	return &pendingRepo{pool: pool}
}

// Insert adds a new open request. The partial unique index on
// (buyer_tg_id, bot_id) WHERE status='pending_approval' makes a concurrent
// duplicate surface as domain.ErrAlreadyExists.
func (r *pendingRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PendingSubscription) error {
	const q = `
INSERT INTO pending_subscriptions (id, buyer_tg_id, bot_id, plan_id, created_at, status)
VALUES ($1,$2,$3,$4,$5,$6);`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.BuyerTgID, p.BotID, p.PlanID, p.CreatedAt, string(p.Status),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *pendingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PendingSubscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, created_at, status
  FROM pending_subscriptions
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPendingRow(row)
}

func (r *pendingRepo) FindOpenByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) (*model.PendingSubscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, created_at, status
  FROM pending_subscriptions
 WHERE buyer_tg_id=$1 AND bot_id=$2 AND status='pending_approval'
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, buyerTgID, botID)
	if err != nil {
		return nil, err
	}
	return scanPendingRow(row)
}

func (r *pendingRepo) ListOpenByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.PendingSubscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, created_at, status
  FROM pending_subscriptions
 WHERE bot_id=$1 AND status='pending_approval'
 ORDER BY id ASC;` // ULIDs sort by creation time
	rows, err := queryRows(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.PendingSubscription
	for rows.Next() {
		p, err := scanPendingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// UpdateStatus flips status from->to in a single conditional UPDATE. Zero rows
// means the row is missing or no longer in `from`; callers disambiguate with a
// follow-up read.
func (r *pendingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PendingStatus) (*model.PendingSubscription, error) {
	const q = `
UPDATE pending_subscriptions
   SET status=$3
 WHERE id=$1 AND status=$2
RETURNING id, buyer_tg_id, bot_id, plan_id, created_at, status;`
	row, err := pickRow(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return nil, err
	}
	return scanPendingRow(row)
}

func scanPendingRow(row pgx.Row) (*model.PendingSubscription, error) {
	p := &model.PendingSubscription{}
	var status string
	if err := row.Scan(&p.ID, &p.BuyerTgID, &p.BotID, &p.PlanID, &p.CreatedAt, &status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PendingStatus(status)
	return p, nil
}
