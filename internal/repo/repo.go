package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

var ErrNotFound = errors.New("not found")

type CadenceStateRepo interface {
	// Start creates or reactivates the state row for (tenant, contact,
	// cadence) with step_index 0 and the given due epoch.
	Start(ctx context.Context, tenantID string, contactID int64, cadenceID string, nextActionEpoch int64) error
	Stop(ctx context.Context, tenantID string, contactID int64, cadenceID string) error
	Get(ctx context.Context, tenantID string, contactID int64, cadenceID string) (*model.CadenceState, error)
	// ListDue returns up to limit rows with next_action_epoch <= now,
	// oldest-first. tenantID "" means all tenants.
	ListDue(ctx context.Context, tenantID string, now int64, limit int) ([]model.CadenceState, error)
	// Advance sets the step index and the next due epoch (nil clears it).
	Advance(ctx context.Context, id int64, stepIndex int, nextActionEpoch *int64) error
	// Defer pushes the due epoch forward without touching the step index.
	Defer(ctx context.Context, id int64, nextActionEpoch int64) error
}

type MessageRepo interface {
	CreateQueued(ctx context.Context, m model.Message) (int64, error)
	MarkSent(ctx context.Context, id int64, providerID string) error
	MarkFailed(ctx context.Context, id int64, failureCode string) error
	ListSent(ctx context.Context, tenantID string, limit, offset int) ([]model.Message, error)
}

type DeadLetterRepo interface {
	Create(ctx context.Context, d model.DeadLetter) (int64, error)
	Get(ctx context.Context, id int64) (*model.DeadLetter, error)
}

type ContactRepo interface {
	Get(ctx context.Context, tenantID string, contactID int64) (*model.Contact, error)
	// HasRevoked reports whether the consent log holds a "revoked" entry for
	// the channel. Revocation overrides the contact's cached consent flags.
	HasRevoked(ctx context.Context, tenantID string, contactID int64, channel model.Channel) (bool, error)
}

type LeadStatusRepo interface {
	ListDue(ctx context.Context, tenantID string, now int64, limit int) ([]model.LeadStatus, error)
	// ScheduleEarliest upserts the row and sets next_action_at to `at`
	// unless an earlier trigger is already set. Never moves a set trigger
	// later.
	ScheduleEarliest(ctx context.Context, tenantID string, contactID int64, bucket, tag string, at int64) error
	// DeferNextAction overwrites the trigger unconditionally; used for
	// quiet-hours deferral of an already-due row.
	DeferNextAction(ctx context.Context, id int64, at int64) error
	ClearNextAction(ctx context.Context, id int64) error
}

type AppointmentRepo interface {
	// ListBooked returns booked appointments starting after the given
	// epoch. tenantID "" means all tenants.
	ListBooked(ctx context.Context, tenantID string, after int64) ([]model.Appointment, error)
}

type SettingsRepo interface {
	// Get returns the tenant's settings, or defaults (no quiet window,
	// UTC, multiplier 1) when the tenant has no row.
	Get(ctx context.Context, tenantID string) (model.TenantSettings, error)
}

type IdempotencyRepo interface {
	// Insert records the key and reports whether it was new. False means
	// the send was already handled.
	Insert(ctx context.Context, tenantID, key string) (bool, error)
}
