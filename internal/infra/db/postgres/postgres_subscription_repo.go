package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (id, buyer_tg_id, bot_id, plan_id, start_at, end_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.BuyerTgID, s.BotID, s.PlanID, s.StartAt, s.EndAt, string(s.Status),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, start_at, end_at, status
  FROM subscriptions
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscriptionRow(row)
}

func (r *subscriptionRepo) ListActiveByBuyerAndBot(ctx context.Context, tx repository.Tx, buyerTgID int64, botID string) ([]*model.Subscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, start_at, end_at, status
  FROM subscriptions
 WHERE buyer_tg_id=$1 AND bot_id=$2 AND status='active'
 ORDER BY end_at DESC;`
	return r.queryMany(ctx, tx, q, buyerTgID, botID)
}

// UpdateStatus flips status from->to in a single conditional UPDATE. Zero rows
// surface as domain.ErrNotFound; the expiry sweeper treats that as a
// concurrent sweep having already claimed the row.
func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.SubscriptionStatus) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions
   SET status=$3
 WHERE id=$1 AND status=$2
RETURNING id, buyer_tg_id, bot_id, plan_id, start_at, end_at, status;`
	row, err := pickRow(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return nil, err
	}
	return scanSubscriptionRow(row)
}

func (r *subscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT id, buyer_tg_id, bot_id, plan_id, start_at, end_at, status
  FROM subscriptions
 WHERE status='active' AND end_at <= $1
 ORDER BY end_at ASC;`
	return r.queryMany(ctx, tx, q, now)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscriptionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSubscriptionRow(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.BuyerTgID, &s.BotID, &s.PlanID, &s.StartAt, &s.EndAt, &status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
