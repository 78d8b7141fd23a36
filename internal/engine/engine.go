// Package engine owns the cadence state machine: starting and stopping
// cadences, the periodic tick that advances due states, and the appointment
// reminder scheduler. All collaborators are injected once at startup;
// nothing here keeps package-level state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/cadence-engine/internal/cadence"
	"github.com/LeventeLantos/cadence-engine/internal/delivery"
	"github.com/LeventeLantos/cadence-engine/internal/events"
	"github.com/LeventeLantos/cadence-engine/internal/model"
	"github.com/LeventeLantos/cadence-engine/internal/repo"
)

const secondsPerDay = 86400

var ErrUnknownCadence = errors.New("unknown cadence id")

type Engine struct {
	states       repo.CadenceStateRepo
	leadStatus   repo.LeadStatusRepo
	appointments repo.AppointmentRepo
	settings     repo.SettingsRepo
	deadLetters  repo.DeadLetterRepo
	sender       *delivery.Service
	emitter      events.Emitter

	batchSize int
	clock     func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func New(
	states repo.CadenceStateRepo,
	leadStatus repo.LeadStatusRepo,
	appointments repo.AppointmentRepo,
	settings repo.SettingsRepo,
	deadLetters repo.DeadLetterRepo,
	sender *delivery.Service,
	emitter events.Emitter,
	batchSize int,
	opts ...Option,
) (*Engine, error) {
	if batchSize <= 0 {
		return nil, errors.New("batch size must be > 0")
	}
	if emitter == nil {
		emitter = events.Discard{}
	}
	e := &Engine{
		states:       states,
		leadStatus:   leadStatus,
		appointments: appointments,
		settings:     settings,
		deadLetters:  deadLetters,
		sender:       sender,
		emitter:      emitter,
		batchSize:    batchSize,
		clock:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// StartCadence creates the state row for the contact with the first step's
// delay seeded from the definition.
func (e *Engine) StartCadence(ctx context.Context, tenantID string, contactID int64, cadenceID string) error {
	steps := cadence.Definition(cadenceID)
	if len(steps) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCadence, cadenceID)
	}
	due := e.clock().Unix() + int64(steps[0].DayOffset)*secondsPerDay
	return e.states.Start(ctx, tenantID, contactID, cadenceID, due)
}

// StopCadence removes the state row; the contact receives no further steps.
func (e *Engine) StopCadence(ctx context.Context, tenantID string, contactID int64, cadenceID string) error {
	return e.states.Stop(ctx, tenantID, contactID, cadenceID)
}

// ReplayDeadLetter re-sends a dead-lettered payload on its original channel.
// Manual operator action; the replay goes through the full gate chain again.
func (e *Engine) ReplayDeadLetter(ctx context.Context, id int64) (model.SendOutcome, error) {
	dl, err := e.deadLetters.Get(ctx, id)
	if err != nil {
		return "", err
	}

	var payload struct {
		TenantID   string `json:"tenant_id"`
		ContactID  int64  `json:"contact_id"`
		Channel    string `json:"channel"`
		TemplateID string `json:"template_id"`
	}
	if err := json.Unmarshal([]byte(dl.Payload), &payload); err != nil {
		return "", fmt.Errorf("decode dead letter payload: %w", err)
	}

	res, err := e.sender.Send(ctx, delivery.Request{
		TenantID:       payload.TenantID,
		ContactID:      payload.ContactID,
		Channel:        model.Channel(payload.Channel),
		TemplateID:     payload.TemplateID,
		IdempotencyKey: fmt.Sprintf("dl-replay-%d-%s", id, uuid.NewString()),
	})
	if err != nil {
		return "", err
	}
	return res.Outcome, nil
}
