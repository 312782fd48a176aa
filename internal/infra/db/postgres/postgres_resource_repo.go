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
var _ repository.ResourceRepository = (*resourceRepo)(nil)

type resourceRepo struct {
	pool *pgxpool.Pool
}

func NewResourceRepo(pool *pgxpool.Pool) *resourceRepo {
	return &resourceRepo{pool: pool}
}

func (r *resourceRepo) Save(ctx context.Context, tx repository.Tx, res *model.Resource) error {
	const q = `
INSERT INTO resources (id, bot_id, tg_chat_id, kind, invite_strategy, custom_link, mandatory)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  tg_chat_id=$3, kind=$4, invite_strategy=$5, custom_link=$6, mandatory=$7;`

	_, err := execSQL(ctx, r.pool, tx, q,
		res.ID, res.BotID, res.TgChatID, string(res.Kind), string(res.InviteStrategy), res.CustomLink, res.Mandatory,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *resourceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Resource, error) {
	const q = `
SELECT id, bot_id, tg_chat_id, kind, invite_strategy, custom_link, mandatory
  FROM resources
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanResourceRow(row)
}

func (r *resourceRepo) ListByBot(ctx context.Context, tx repository.Tx, botID string) ([]*model.Resource, error) {
	const q = `
SELECT id, bot_id, tg_chat_id, kind, invite_strategy, custom_link, mandatory
  FROM resources
 WHERE bot_id=$1
 ORDER BY id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *resourceRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM resources WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapError(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanResourceRow(row pgx.Row) (*model.Resource, error) {
	res := &model.Resource{}
	var kind, strategy string
	if err := row.Scan(&res.ID, &res.BotID, &res.TgChatID, &kind, &strategy, &res.CustomLink, &res.Mandatory); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	res.Kind = model.ResourceKind(kind)
	res.InviteStrategy = model.InviteStrategy(strategy)
	return res, nil
}
