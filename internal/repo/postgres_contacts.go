package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresContactRepo struct {
	db *sql.DB
}

func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

func (r *PostgresContactRepo) Get(ctx context.Context, tenantID string, contactID int64) (*model.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(phone, ''), COALESCE(email, ''), consent_sms, consent_email
		FROM contacts
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, contactID)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.TenantID, &c.Phone, &c.Email, &c.ConsentSMS, &c.ConsentEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresContactRepo) HasRevoked(ctx context.Context, tenantID string, contactID int64, channel model.Channel) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM consent_log
			WHERE tenant_id = $1 AND contact_id = $2 AND channel = $3 AND action = 'revoked'
		)
	`, tenantID, contactID, string(channel)).Scan(&exists)
	return exists, err
}
