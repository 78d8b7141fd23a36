package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresLeadStatusRepo struct {
	db *sql.DB
}

func NewPostgresLeadStatusRepo(db *sql.DB) *PostgresLeadStatusRepo {
	return &PostgresLeadStatusRepo{db: db}
}

func (r *PostgresLeadStatusRepo) ListDue(ctx context.Context, tenantID string, now int64, limit int) ([]model.LeadStatus, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	query := `
		SELECT id, tenant_id, contact_id, bucket, tag, next_action_at, updated_at
		FROM lead_status
		WHERE next_action_at IS NOT NULL AND next_action_at <= $1
		ORDER BY next_action_at ASC
		LIMIT $2
	`
	args := []any{now, limit}
	if tenantID != "" {
		query = `
			SELECT id, tenant_id, contact_id, bucket, tag, next_action_at, updated_at
			FROM lead_status
			WHERE tenant_id = $3 AND next_action_at IS NOT NULL AND next_action_at <= $1
			ORDER BY next_action_at ASC
			LIMIT $2
		`
		args = append(args, tenantID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LeadStatus
	for rows.Next() {
		var ls model.LeadStatus
		var next sql.NullInt64
		if err := rows.Scan(&ls.ID, &ls.TenantID, &ls.ContactID, &ls.Bucket, &ls.Tag, &next, &ls.UpdatedAt); err != nil {
			return nil, err
		}
		if next.Valid {
			v := next.Int64
			ls.NextActionAt = &v
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

// ScheduleEarliest never moves an already-set trigger later, so repeated
// reminder sweeps cannot oscillate a contact's next action.
func (r *PostgresLeadStatusRepo) ScheduleEarliest(ctx context.Context, tenantID string, contactID int64, bucket, tag string, at int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_status (tenant_id, contact_id, bucket, tag, next_action_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id, contact_id)
		DO UPDATE SET bucket = $3, tag = $4, updated_at = now(),
			next_action_at = LEAST(COALESCE(lead_status.next_action_at, $5), $5)
	`, tenantID, contactID, bucket, tag, at)
	return err
}

func (r *PostgresLeadStatusRepo) DeferNextAction(ctx context.Context, id int64, at int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lead_status
		SET next_action_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	return err
}

func (r *PostgresLeadStatusRepo) ClearNextAction(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lead_status
		SET next_action_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}
