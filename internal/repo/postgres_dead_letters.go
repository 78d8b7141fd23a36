package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresDeadLetterRepo struct {
	db *sql.DB
}

func NewPostgresDeadLetterRepo(db *sql.DB) *PostgresDeadLetterRepo {
	return &PostgresDeadLetterRepo{db: db}
}

func (r *PostgresDeadLetterRepo) Create(ctx context.Context, d model.DeadLetter) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO dead_letters (tenant_id, provider, reason, attempts, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id
	`, d.TenantID, d.Provider, d.Reason, d.Attempts, d.Payload).Scan(&id)
	return id, err
}

func (r *PostgresDeadLetterRepo) Get(ctx context.Context, id int64) (*model.DeadLetter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, provider, reason, attempts, payload, created_at
		FROM dead_letters
		WHERE id = $1
	`, id)

	var d model.DeadLetter
	if err := row.Scan(&d.ID, &d.TenantID, &d.Provider, &d.Reason, &d.Attempts, &d.Payload, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
