package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeventeLantos/cadence-engine/internal/cadence"
	"github.com/LeventeLantos/cadence-engine/internal/delivery"
	"github.com/LeventeLantos/cadence-engine/internal/events"
	"github.com/LeventeLantos/cadence-engine/internal/model"
	"github.com/LeventeLantos/cadence-engine/internal/quiethours"
)

// Tick runs one bounded sweep over due cadence states and due lead-status
// reminders. Batches are re-queried until drained so rows becoming due
// mid-sweep are not starved; every mutation moves next_action forward or
// clears it, so the loop terminates. One row's failure never aborts the
// rest of the batch. tenantID "" sweeps all tenants. The returned count is
// rows touched, not messages sent: deferred and poison rows count too.
func (e *Engine) Tick(ctx context.Context, tenantID string) (int, error) {
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		now := e.clock().Unix()
		batch, err := e.states.ListDue(ctx, tenantID, now, e.batchSize)
		if err != nil {
			return processed, fmt.Errorf("list due cadence states: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, st := range batch {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			if err := e.processState(ctx, st, now); err != nil {
				slog.Error("cadence state processing failed",
					"tenant_id", st.TenantID, "contact_id", st.ContactID,
					"cadence_id", st.CadenceID, "error", err)
				// Push the row out one minute so a poisoned row cannot
				// spin the sweep loop.
				_ = e.states.Defer(ctx, st.ID, now+60)
			}
			processed++
		}
	}

	reminders, err := e.tickReminders(ctx, tenantID)
	processed += reminders
	if err != nil {
		return processed, err
	}

	e.emitter.Emit(ctx, events.Event{
		Type:     events.TypeTickCompleted,
		TenantID: tenantID,
		Fields:   map[string]any{"processed": processed},
	})
	return processed, nil
}

func (e *Engine) processState(ctx context.Context, st model.CadenceState, now int64) error {
	settings, err := e.settings.Get(ctx, st.TenantID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if deferred, err := e.deferForQuietHours(ctx, st.ID, settings, now); err != nil || deferred {
		return err
	}

	steps := cadence.Definition(st.CadenceID)
	if st.StepIndex >= len(steps) {
		// Exhausted (or the definition shrank); park the row for good.
		return e.states.Advance(ctx, st.ID, st.StepIndex, nil)
	}

	step := steps[st.StepIndex]
	res, err := e.sender.Send(ctx, delivery.Request{
		TenantID:       st.TenantID,
		ContactID:      st.ContactID,
		Channel:        step.Channel,
		TemplateID:     cadence.TemplateID(st.CadenceID, st.StepIndex),
		IdempotencyKey: fmt.Sprintf("cadence-%d-step-%d", st.ID, st.StepIndex),
	})
	if err != nil {
		return fmt.Errorf("send step %d: %w", st.StepIndex, err)
	}

	// Terminal rejections still advance the step: a suppressed or
	// unconsented contact should not be retried on the same step forever.
	next := st.StepIndex + 1
	var due *int64
	if next < len(steps) {
		d := now + int64(steps[next].DayOffset)*secondsPerDay
		due = &d
	}
	if err := e.states.Advance(ctx, st.ID, next, due); err != nil {
		return fmt.Errorf("advance state: %w", err)
	}

	e.emitter.Emit(ctx, events.Event{
		Type:      events.TypeStepCompleted,
		TenantID:  st.TenantID,
		ContactID: st.ContactID,
		Fields: map[string]any{
			"cadence_id": st.CadenceID,
			"step_index": st.StepIndex,
			"channel":    string(step.Channel),
			"outcome":    string(res.Outcome),
		},
	})
	return nil
}

// deferForQuietHours pushes the row to the end of the tenant's quiet window
// when now falls inside it. The step index is untouched on deferral.
func (e *Engine) deferForQuietHours(ctx context.Context, stateID int64, settings model.TenantSettings, now int64) (bool, error) {
	hour := quiethours.LocalHour(now, settings.UTCOffsetHours)
	if !quiethours.IsQuiet(hour, settings.QuietStartHour, settings.QuietEndHour) {
		return false, nil
	}
	next := quiethours.NextAllowedEpoch(now, settings.UTCOffsetHours, settings.QuietEndHour)
	if next <= now {
		next = now + 3600
	}
	if err := e.states.Defer(ctx, stateID, next); err != nil {
		return false, fmt.Errorf("defer for quiet hours: %w", err)
	}
	return true, nil
}

// tickReminders drains due lead-status rows: the reminder pathway seeded by
// the appointment scheduler. Due rows either get quiet-hours deferred or
// receive the reminder template, after which the trigger is cleared.
func (e *Engine) tickReminders(ctx context.Context, tenantID string) (int, error) {
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		now := e.clock().Unix()
		batch, err := e.leadStatus.ListDue(ctx, tenantID, now, e.batchSize)
		if err != nil {
			return processed, fmt.Errorf("list due lead statuses: %w", err)
		}
		if len(batch) == 0 {
			return processed, nil
		}

		for _, ls := range batch {
			if err := e.processReminder(ctx, ls, now); err != nil {
				slog.Error("reminder processing failed",
					"tenant_id", ls.TenantID, "contact_id", ls.ContactID, "error", err)
				// Keep the trigger: clearing it here would lose the
				// reminder for good once no future offset remains.
				_ = e.leadStatus.DeferNextAction(ctx, ls.ID, now+60)
			}
			processed++
		}
	}
}

func (e *Engine) processReminder(ctx context.Context, ls model.LeadStatus, now int64) error {
	settings, err := e.settings.Get(ctx, ls.TenantID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	hour := quiethours.LocalHour(now, settings.UTCOffsetHours)
	if quiethours.IsQuiet(hour, settings.QuietStartHour, settings.QuietEndHour) {
		next := quiethours.NextAllowedEpoch(now, settings.UTCOffsetHours, settings.QuietEndHour)
		if next <= now {
			next = now + 3600
		}
		return e.leadStatus.DeferNextAction(ctx, ls.ID, next)
	}

	// The key is derived from the row and its trigger so a second sweep of
	// the same due row (degraded lock, overlapping replicas) is a no-op.
	trigger := now
	if ls.NextActionAt != nil {
		trigger = *ls.NextActionAt
	}
	if _, err := e.sender.Send(ctx, delivery.Request{
		TenantID:       ls.TenantID,
		ContactID:      ls.ContactID,
		Channel:        model.ChannelSMS,
		TemplateID:     "appointment_reminder",
		IdempotencyKey: fmt.Sprintf("reminder-%d-%d", ls.ID, trigger),
	}); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	return e.leadStatus.ClearNextAction(ctx, ls.ID)
}
