package repo

import (
	"context"
	"database/sql"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

func (r *PostgresMessageRepo) CreateQueued(ctx context.Context, m model.Message) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (tenant_id, contact_id, channel, direction, template_id, body_redacted, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'queued', now(), now())
		RETURNING id
	`, m.TenantID, m.ContactID, string(m.Channel), string(m.Direction), m.TemplateID, m.BodyRedacted).Scan(&id)
	return id, err
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id int64, providerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sent', provider_id = $2, updated_at = now()
		WHERE id = $1
	`, id, providerID)
	return err
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id int64, failureCode string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'failed', failure_code = $2, updated_at = now()
		WHERE id = $1
	`, id, failureCode)
	return err
}

func (r *PostgresMessageRepo) ListSent(ctx context.Context, tenantID string, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, contact_id, channel, direction, template_id, body_redacted,
		       status, provider_id, failure_code, created_at, updated_at
		FROM messages
		WHERE tenant_id = $1 AND status = 'sent'
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var channel, direction, status string
		var providerID, failureCode sql.NullString

		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.ContactID,
			&channel,
			&direction,
			&m.TemplateID,
			&m.BodyRedacted,
			&status,
			&providerID,
			&failureCode,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		m.Channel = model.Channel(channel)
		m.Direction = model.Direction(direction)
		m.Status = model.MessageStatus(status)
		if providerID.Valid {
			s := providerID.String
			m.ProviderID = &s
		}
		if failureCode.Valid {
			s := failureCode.String
			m.FailureCode = &s
		}

		out = append(out, m)
	}
	return out, rows.Err()
}
