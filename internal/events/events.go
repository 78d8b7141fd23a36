// Package events is the fire-and-forget observability sink. Emission must
// never block or fail the calling path; the engine emits and moves on.
package events

import (
	"context"
	"log/slog"
)

const (
	TypeStepCompleted     = "step_completed"
	TypeMessageQueued     = "message_queued"
	TypeMessageSent       = "message_sent"
	TypeMessageFailed     = "message_failed"
	TypeReminderScheduled = "reminder_scheduled"
	TypeTickCompleted     = "tick_completed"
)

type Event struct {
	Type      string
	TenantID  string
	ContactID int64
	Fields    map[string]any
}

type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// LogEmitter writes events as structured log lines.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(_ context.Context, e Event) {
	attrs := []any{"tenant_id", e.TenantID, "contact_id", e.ContactID}
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	l.logger.Info("event "+e.Type, attrs...)
}

// Discard drops every event. Useful in tests.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
