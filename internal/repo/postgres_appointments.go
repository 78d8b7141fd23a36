package repo

import (
	"context"
	"database/sql"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

type PostgresAppointmentRepo struct {
	db *sql.DB
}

func NewPostgresAppointmentRepo(db *sql.DB) *PostgresAppointmentRepo {
	return &PostgresAppointmentRepo{db: db}
}

func (r *PostgresAppointmentRepo) ListBooked(ctx context.Context, tenantID string, after int64) ([]model.Appointment, error) {
	query := `
		SELECT id, tenant_id, contact_id, start_ts, status
		FROM appointments
		WHERE status = 'booked' AND start_ts > $1
		ORDER BY start_ts ASC
	`
	args := []any{after}
	if tenantID != "" {
		query = `
			SELECT id, tenant_id, contact_id, start_ts, status
			FROM appointments
			WHERE tenant_id = $2 AND status = 'booked' AND start_ts > $1
			ORDER BY start_ts ASC
		`
		args = append(args, tenantID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ContactID, &a.StartTS, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
