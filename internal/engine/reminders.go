package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeventeLantos/cadence-engine/internal/events"
	"github.com/LeventeLantos/cadence-engine/internal/quiethours"
)

// reminderOffsets are the seconds before an appointment at which a reminder
// fires: 7 days, 3 days, 1 day, 2 hours.
var reminderOffsets = []int64{
	7 * secondsPerDay,
	3 * secondsPerDay,
	1 * secondsPerDay,
	2 * 3600,
}

// ScheduleReminders seeds lead-status triggers for every future booked
// appointment. For each appointment the earliest still-future trigger wins,
// quiet-hours adjusted; an existing earlier trigger is never moved later.
// tenantID "" covers all tenants. Returns the number of appointments that
// produced a trigger.
func (e *Engine) ScheduleReminders(ctx context.Context, tenantID string) (int, error) {
	now := e.clock().Unix()

	appts, err := e.appointments.ListBooked(ctx, tenantID, now)
	if err != nil {
		return 0, fmt.Errorf("list booked appointments: %w", err)
	}

	processed := 0
	for _, appt := range appts {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		trigger, ok := earliestFutureTrigger(appt.StartTS, now)
		if !ok {
			continue
		}

		settings, err := e.settings.Get(ctx, appt.TenantID)
		if err != nil {
			slog.Error("reminder scheduling failed", "tenant_id", appt.TenantID,
				"appointment_id", appt.ID, "error", err)
			continue
		}

		hour := quiethours.LocalHour(trigger, settings.UTCOffsetHours)
		if quiethours.IsQuiet(hour, settings.QuietStartHour, settings.QuietEndHour) {
			trigger = quiethours.NextAllowedEpoch(trigger, settings.UTCOffsetHours, settings.QuietEndHour)
		}

		if err := e.leadStatus.ScheduleEarliest(ctx, appt.TenantID, appt.ContactID, "appointment", "reminder", trigger); err != nil {
			slog.Error("reminder scheduling failed", "tenant_id", appt.TenantID,
				"appointment_id", appt.ID, "error", err)
			continue
		}

		e.emitter.Emit(ctx, events.Event{
			Type:      events.TypeReminderScheduled,
			TenantID:  appt.TenantID,
			ContactID: appt.ContactID,
			Fields:    map[string]any{"appointment_id": appt.ID, "trigger_at": trigger},
		})
		processed++
	}
	return processed, nil
}

// earliestFutureTrigger picks the soonest reminder offset still ahead of
// now. An appointment less than two hours out gets no reminder.
func earliestFutureTrigger(startTS, now int64) (int64, bool) {
	best := int64(0)
	found := false
	for _, off := range reminderOffsets {
		t := startTS - off
		if t <= now {
			continue
		}
		if !found || t < best {
			best = t
			found = true
		}
	}
	return best, found
}
