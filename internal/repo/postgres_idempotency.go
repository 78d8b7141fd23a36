package repo

import (
	"context"
	"database/sql"
)

type PostgresIdempotencyRepo struct {
	db *sql.DB
}

func NewPostgresIdempotencyRepo(db *sql.DB) *PostgresIdempotencyRepo {
	return &PostgresIdempotencyRepo{db: db}
}

func (r *PostgresIdempotencyRepo) Insert(ctx context.Context, tenantID, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (tenant_id, key, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO NOTHING
	`, tenantID, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
