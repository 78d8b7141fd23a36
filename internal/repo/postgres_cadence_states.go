package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresCadenceStateRepo struct {
	db *sql.DB
}

func NewPostgresCadenceStateRepo(db *sql.DB) *PostgresCadenceStateRepo {
	return &PostgresCadenceStateRepo{db: db}
}

func (r *PostgresCadenceStateRepo) Start(ctx context.Context, tenantID string, contactID int64, cadenceID string, nextActionEpoch int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cadence_states (tenant_id, contact_id, cadence_id, step_index, next_action_epoch, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, now(), now())
		ON CONFLICT (tenant_id, contact_id, cadence_id)
		DO UPDATE SET step_index = 0, next_action_epoch = $4, updated_at = now()
	`, tenantID, contactID, cadenceID, nextActionEpoch)
	return err
}

func (r *PostgresCadenceStateRepo) Stop(ctx context.Context, tenantID string, contactID int64, cadenceID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cadence_states
		WHERE tenant_id = $1 AND contact_id = $2 AND cadence_id = $3
	`, tenantID, contactID, cadenceID)
	return err
}

func (r *PostgresCadenceStateRepo) Get(ctx context.Context, tenantID string, contactID int64, cadenceID string) (*model.CadenceState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, contact_id, cadence_id, step_index, next_action_epoch, created_at, updated_at
		FROM cadence_states
		WHERE tenant_id = $1 AND contact_id = $2 AND cadence_id = $3
	`, tenantID, contactID, cadenceID)

	var s model.CadenceState
	var next sql.NullInt64
	if err := row.Scan(&s.ID, &s.TenantID, &s.ContactID, &s.CadenceID, &s.StepIndex, &next, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if next.Valid {
		v := next.Int64
		s.NextActionEpoch = &v
	}
	return &s, nil
}

func (r *PostgresCadenceStateRepo) ListDue(ctx context.Context, tenantID string, now int64, limit int) ([]model.CadenceState, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	query := `
		SELECT id, tenant_id, contact_id, cadence_id, step_index, next_action_epoch, created_at, updated_at
		FROM cadence_states
		WHERE next_action_epoch IS NOT NULL AND next_action_epoch <= $1
		ORDER BY next_action_epoch ASC
		LIMIT $2
	`
	args := []any{now, limit}
	if tenantID != "" {
		query = `
			SELECT id, tenant_id, contact_id, cadence_id, step_index, next_action_epoch, created_at, updated_at
			FROM cadence_states
			WHERE tenant_id = $3 AND next_action_epoch IS NOT NULL AND next_action_epoch <= $1
			ORDER BY next_action_epoch ASC
			LIMIT $2
		`
		args = append(args, tenantID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CadenceState
	for rows.Next() {
		var s model.CadenceState
		var next sql.NullInt64
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ContactID, &s.CadenceID, &s.StepIndex, &next, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if next.Valid {
			v := next.Int64
			s.NextActionEpoch = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresCadenceStateRepo) Advance(ctx context.Context, id int64, stepIndex int, nextActionEpoch *int64) error {
	var next sql.NullInt64
	if nextActionEpoch != nil {
		next = sql.NullInt64{Int64: *nextActionEpoch, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE cadence_states
		SET step_index = $2, next_action_epoch = $3, updated_at = now()
		WHERE id = $1
	`, id, stepIndex, next)
	return err
}

func (r *PostgresCadenceStateRepo) Defer(ctx context.Context, id int64, nextActionEpoch int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cadence_states
		SET next_action_epoch = $2, updated_at = now()
		WHERE id = $1
	`, id, nextActionEpoch)
	return err
}
