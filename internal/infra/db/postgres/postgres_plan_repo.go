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
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO plans (id, bot_id, name, duration_days, linked_resource_ids, is_visible, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$3, duration_days=$4, linked_resource_ids=$5, is_visible=$6, description=$7;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.BotID, plan.Name, plan.DurationDays,
		plan.LinkedResourceIDs, plan.IsVisible, plan.Description, plan.CreatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `
SELECT id, bot_id, name, duration_days, linked_resource_ids, is_visible, description, created_at
  FROM plans
 WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *planRepo) ListVisibleByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Plan, error) {
	const q = `
SELECT id, bot_id, name, duration_days, linked_resource_ids, is_visible, description, created_at
  FROM plans
 WHERE bot_id=$1 AND is_visible=true
 ORDER BY duration_days ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
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

func (r *planRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM plans WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapError(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *planRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.BotID, &p.Name, &p.DurationDays, &p.LinkedResourceIDs, &p.IsVisible, &p.Description, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func scanPlan(rows pgx.Rows) (*model.Plan, error) {
	p := &model.Plan{}
	if err := rows.Scan(&p.ID, &p.BotID, &p.Name, &p.DurationDays, &p.LinkedResourceIDs, &p.IsVisible, &p.Description, &p.CreatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
