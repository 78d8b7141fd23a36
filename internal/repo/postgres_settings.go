package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresSettingsRepo struct {
	db *sql.DB
}

func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

func (r *PostgresSettingsRepo) Get(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, quiet_start_hour, quiet_end_hour, utc_offset_hours, rate_multiplier
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID)

	var s model.TenantSettings
	if err := row.Scan(&s.TenantID, &s.QuietStartHour, &s.QuietEndHour, &s.UTCOffsetHours, &s.RateMultiplier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TenantSettings{TenantID: tenantID, RateMultiplier: 1}, nil
		}
		return model.TenantSettings{}, err
	}
	return s, nil
}
